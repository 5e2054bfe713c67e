package service

// QRCodeService renders the browser sign-in URL as a scannable QR code so
// a session can be opened from a phone.
type QRCodeService interface {
	// GenerateSignInQR returns a PNG image encoding the given sign-in URL.
	GenerateSignInQR(signInURL string) ([]byte, error)
}
