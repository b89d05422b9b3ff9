package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/travelo/travelo-cli/internal/session"
	"github.com/travelo/travelo-cli/pkg/models"
)

// AuthCommand returns the auth command group
func AuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the login session",
		Subcommands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in and persist the session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: runLogin,
			},
			{
				Name:   "logout",
				Usage:  "Log out and clear the persisted session",
				Action: runLogout,
			},
			{
				Name:   "me",
				Usage:  "Show the current session",
				Action: runMe,
			},
			{
				Name:  "register",
				Usage: "Create a new account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: runRegister,
			},
			{
				Name:  "verify",
				Usage: "Verify an email address with the emailed code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
					&cli.StringFlag{Name: "code", Required: true},
				},
				Action: runVerify,
			},
			{
				Name:  "resend-verification",
				Usage: "Resend the verification email",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
				},
				Action: runResendVerification,
			},
			{
				Name:  "forgot-password",
				Usage: "Request a password reset link",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
				},
				Action: runForgotPassword,
			},
			{
				Name:  "reset-password",
				Usage: "Set a new password with the emailed reset token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: runResetPassword,
			},
		},
	}
}

func runLogin(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	result, err := app.session.Login(c.Context, c.String("username"), c.String("password"))
	if err != nil {
		return cli.Exit("", 1)
	}
	if result.Surface == session.SurfaceAdmin {
		fmt.Println("Welcome to the admin dashboard,", result.User.Username)
	}
	return nil
}

func runLogout(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	app.session.Logout(c.Context)
	return nil
}

func runMe(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	snap := app.session.Current()
	if !snap.LoggedIn() {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("Logged in as %s <%s>", snap.User.Username, snap.User.Email)
	if snap.User.Role == models.RoleAdmin {
		fmt.Print(" (admin)")
	}
	fmt.Println()
	if expiry := app.session.TokenExpiry(); !expiry.IsZero() {
		fmt.Println("Access token expires:", expiry.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRegister(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	reg := models.Registration{
		Username: c.String("username"),
		Email:    c.String("email"),
		Password: c.String("password"),
	}
	if _, err := app.session.Register(c.Context, reg); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func runVerify(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	if _, err := app.session.VerifyCode(c.Context, c.String("email"), c.String("code")); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func runResendVerification(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	if _, err := app.session.ResendVerification(c.Context, c.String("email")); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func runForgotPassword(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	if _, err := app.session.ForgotPassword(c.Context, c.String("email")); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func runResetPassword(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	if _, err := app.session.ResetPassword(c.Context, c.String("token"), c.String("password")); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}
