package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"backer/config"
	deliveryhttp "backer/internal/delivery/http"
	"backer/internal/domain/service"
	"backer/internal/infra/api"
	"backer/internal/infra/auth"
	logs "backer/internal/infra/log"
	"backer/internal/infra/persistence/filestore"
	"backer/internal/infra/qrcode"
	"backer/internal/usecase"
	"backer/internal/usecase/impl"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Supported subcommands:
// - login:  Open a session with email/password or through the browser
// - logout: Revoke the session remotely and clear stored credentials
// - status: Show whether a session is open and for whom
// - roles:  Show the caller's standing on one project

const browserSignInTimeout = 5 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	fx.New(
		// The Fx event log on stderr would drown the command output.
		fx.NopLogger,
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		fx.Provide(newCLI),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *cli) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						exitCode := 0
						if err := runner.run(context.Background(), command, args); err != nil {
							fmt.Fprintf(os.Stderr, "Error: %v\n", err)
							exitCode = 1
						}
						_ = shutdowner.Shutdown(fx.ExitCode(exitCode))
					}()

					return nil
				},
			})
		}),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			filestore.NewCredentialStore,
			auth.NewClaimsDecoder,
			api.NewClient,
			newQRCodeService,
		),
	)
}

// newQRCodeService creates a QR code service with dependency injection
func newQRCodeService(cfg *config.Config) service.QRCodeService {
	if cfg.QRCode == nil {
		// Use default values if not configured
		return qrcode.NewQRCodeService(256, "M")
	}

	return qrcode.NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewSessionService,
			impl.NewPermissionService,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			deliveryhttp.NewServer,
		),
	)
}

// cli routes one subcommand invocation through the use cases.
type cli struct {
	session  usecase.SessionUsecase
	resolver usecase.PermissionUsecase
	qr       service.QRCodeService
	callback *deliveryhttp.CallbackServer
}

// CLIParams holds dependencies for the command runner, injected by Fx.
type CLIParams struct {
	fx.In

	Session  usecase.SessionUsecase
	Resolver usecase.PermissionUsecase
	QR       service.QRCodeService
	Callback *deliveryhttp.CallbackServer
}

// newCLI is the constructor for cli.
func newCLI(params CLIParams) *cli {
	return &cli{
		session:  params.Session,
		resolver: params.Resolver,
		qr:       params.QR,
		callback: params.Callback,
	}
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	if err := c.session.Init(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize session")
	}

	switch command {
	case "login":
		return c.runLogin(ctx, args)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "roles":
		return c.runRoles(ctx, args)
	default:
		printUsage()

		return errors.Errorf("unknown subcommand: %s", command)
	}
}

func (c *cli) runLogin(ctx context.Context, args []string) error {
	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	email := loginCmd.String("email", "", "Account email (prompted when omitted)")
	password := loginCmd.String("password", "", "Account password (prompted when omitted)")
	browser := loginCmd.Bool("browser", false, "Sign in through the platform's web page")
	withQR := loginCmd.Bool("qr", false, "Also render the browser sign-in URL as a QR code image")

	if err := loginCmd.Parse(args); err != nil {
		return errors.Wrap(err, "failed to parse login flags")
	}

	if *browser {
		return c.runBrowserLogin(ctx, *withQR)
	}

	input := &usecase.LoginInput{Email: *email, Password: *password}
	if input.Email == "" {
		value, err := promptLine("Email: ")
		if err != nil {
			return err
		}
		input.Email = value
	}
	if input.Password == "" {
		value, err := promptLine("Password: ")
		if err != nil {
			return err
		}
		input.Password = value
	}

	if err := c.session.Login(ctx, input); err != nil {
		return err
	}

	fmt.Println("Signed in.")

	return nil
}

func (c *cli) runBrowserLogin(ctx context.Context, withQR bool) error {
	signInURL, err := c.callback.SignInURL()
	if err != nil {
		return err
	}

	go func() {
		if serveErr := c.callback.Serve(ctx); serveErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", serveErr)
		}
	}()

	fmt.Println("Open this URL in your browser to sign in:")
	fmt.Println("  " + signInURL)

	if withQR {
		imagePath, qrErr := c.writeSignInQR(signInURL)
		if qrErr != nil {
			return qrErr
		}
		fmt.Println("Or scan the QR code saved at " + imagePath)
	}

	waitCtx, cancel := context.WithTimeout(ctx, browserSignInTimeout)
	defer cancel()

	select {
	case callbackErr := <-c.callback.Result():
		if callbackErr != nil {
			return errors.Wrap(callbackErr, "browser sign-in failed")
		}
	case <-waitCtx.Done():
		return errors.New("timed out waiting for the browser sign-in callback")
	}

	fmt.Println("Signed in.")

	return nil
}

func (c *cli) writeSignInQR(signInURL string) (string, error) {
	png, err := c.qr.GenerateSignInQR(signInURL)
	if err != nil {
		return "", errors.Wrap(err, "failed to render sign-in QR code")
	}

	imagePath := filepath.Join(os.TempDir(), "backer-signin.png")
	if err := os.WriteFile(imagePath, png, 0o600); err != nil {
		return "", errors.Wrap(err, "failed to write sign-in QR code")
	}

	return imagePath, nil
}

func (c *cli) runLogout(ctx context.Context) error {
	if !c.session.IsAuthenticated() {
		fmt.Println("Not signed in.")

		return nil
	}

	if err := c.session.Logout(ctx); err != nil {
		// Local state is already cleared; a failed remote revoke is worth
		// a warning, not a failed command.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	fmt.Println("Signed out.")

	return nil
}

func (c *cli) runStatus(ctx context.Context) error {
	if !c.session.IsAuthenticated() {
		fmt.Println("Not signed in.")

		return nil
	}

	user, err := c.session.CurrentUser(ctx)
	if err != nil {
		fmt.Println("Signed in (profile unavailable).")

		return nil
	}

	fmt.Printf("Signed in as %s <%s>\n", user.Name, user.Email)

	if err := c.resolver.Load(ctx); err == nil && c.resolver.CanAdministerProject() {
		fmt.Println("Platform role: Admin")
	}

	return nil
}

func (c *cli) runRoles(ctx context.Context, args []string) error {
	rolesCmd := flag.NewFlagSet("roles", flag.ExitOnError)
	projectID := rolesCmd.Int64("project", 0, "Project id to inspect")

	if err := rolesCmd.Parse(args); err != nil {
		return errors.Wrap(err, "failed to parse roles flags")
	}
	if *projectID == 0 {
		return errors.New("--project flag is required for roles command")
	}
	if !c.session.IsAuthenticated() {
		return errors.New("not signed in")
	}

	standing, err := c.resolver.FetchProjectRoles(ctx, *projectID)
	if err != nil {
		return err
	}

	if len(standing.Roles) == 0 && !standing.IsCreator {
		fmt.Printf("No roles on project %d.\n", *projectID)

		return nil
	}

	fmt.Printf("Roles on project %d: %s\n", *projectID, strings.Join(standing.Roles.ToStrings(), ", "))
	if standing.Creator() {
		fmt.Println("You are the creator of this project.")
	}

	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "failed to read input")
	}

	return strings.TrimSpace(line), nil
}

func printUsage() {
	fmt.Println("Usage: backer <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  login     Open a session with email/password, or -browser for the web flow")
	fmt.Println("  logout    Revoke the session and clear stored credentials")
	fmt.Println("  status    Show whether a session is open and for whom")
	fmt.Println("  roles     Show your standing on one project (-project <id>)")
	fmt.Println("")
	fmt.Println("Use 'backer <command> -h' for more information about a command.")
}
