// Command atm is the interactive terminal frontend for the Smart ATM+ demo
// service. All session and account state lives in the internal packages; this
// binary only collects input and renders state.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/smart-atm/smart_atm/internal/account"
	"github.com/smart-atm/smart_atm/internal/bankapi"
	"github.com/smart-atm/smart_atm/internal/config"
	"github.com/smart-atm/smart_atm/internal/exitgate"
	"github.com/smart-atm/smart_atm/internal/logging"
	"github.com/smart-atm/smart_atm/internal/session"
	"github.com/smart-atm/smart_atm/internal/status"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	api := bankapi.New(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	st := status.NewChannel(cfg.StatusTTL)
	st.SetListener(func(msg status.Message, published bool) {
		if published {
			fmt.Printf("  [%s] %s\n", msg.Severity, msg.Text)
		}
	})

	app := &app{
		in:       bufio.NewScanner(os.Stdin),
		api:      api,
		status:   st,
		sessions: session.NewManager(api, st, logger),
		gate:     exitgate.New(api, logger),
		logger:   logger,
	}
	app.run(context.Background())
}

type app struct {
	in       *bufio.Scanner
	api      *bankapi.Client
	status   *status.Channel
	sessions *session.Manager
	gate     *exitgate.Gate
	logger   *slog.Logger

	acct *account.Client
}

func (a *app) run(ctx context.Context) {
	fmt.Println("Smart ATM+")
	for {
		if a.acct == nil {
			if quit := a.authScreen(ctx); quit {
				return
			}
			continue
		}
		if quit := a.dashboard(ctx); quit {
			return
		}
	}
}

// authScreen drives the anonymous state: login, or the two-phase OTP signup.
func (a *app) authScreen(ctx context.Context) (quit bool) {
	if a.sessions.Mode() == session.ModeLogin {
		fmt.Println("\n-- Login --  1) login  2) need an account? sign up  q) quit")
	} else if a.sessions.State() == session.StateOtpRequested {
		fmt.Println("\n-- Sign up --  1) verify OTP & create account  2) already have an account? login  q) quit")
	} else {
		fmt.Println("\n-- Sign up --  1) send OTP to email  2) already have an account? login  q) quit")
	}

	switch a.prompt("> ") {
	case "1":
		if a.sessions.Mode() == session.ModeLogin {
			a.login(ctx)
		} else if a.sessions.State() == session.StateOtpRequested {
			a.verifySignup(ctx)
		} else {
			a.sendOTP(ctx)
		}
	case "2":
		a.sessions.ToggleMode()
	case "q":
		return true
	}
	return false
}

func (a *app) login(ctx context.Context) {
	username := a.prompt("Username: ")
	password := a.prompt("Password: ")

	identity, err := a.sessions.Login(ctx, username, password)
	if err != nil {
		return
	}

	a.acct = account.New(a.api, a.status, a.logger, identity)
	if err := a.acct.FetchBalance(ctx); err != nil {
		a.logger.Warn("initial balance fetch failed", "error", err)
	}
}

func (a *app) sendOTP(ctx context.Context) {
	email := a.prompt("Email: ")
	_ = a.sessions.RequestOTP(ctx, email)
}

func (a *app) verifySignup(ctx context.Context) {
	username := a.prompt("Username: ")
	email := a.prompt("Email: ")
	password := a.prompt("Password: ")
	pin := a.prompt("4-digit PIN: ")
	otp := a.prompt("OTP: ")
	_ = a.sessions.VerifySignup(ctx, username, email, password, otp, pin)
}

func (a *app) dashboard(ctx context.Context) (quit bool) {
	snap := a.acct.Snapshot()

	fmt.Printf("\nWelcome, %s\n", a.acct.Username())
	fmt.Printf("Available balance: ₹%.2f\n", snap.Balance)
	if len(snap.Transactions) == 0 {
		fmt.Println("No transactions yet")
	} else {
		fmt.Println("Recent transactions:")
		for _, t := range snap.Transactions {
			line := fmt.Sprintf("  %-20s ₹%.2f  %s", t.Type, t.Amount, t.Timestamp)
			if t.ToUser != "" {
				line += "  -> " + t.ToUser
			}
			fmt.Println(line)
		}
	}

	fmt.Println("d) deposit  w) withdraw  t) transfer  e) export CSV  r) refresh  l) logout")
	switch a.prompt("> ") {
	case "d":
		_ = a.acct.Deposit(ctx, a.promptAmount())
	case "w":
		a.withdraw(ctx)
	case "t":
		a.transfer(ctx)
	case "e":
		if path, err := a.acct.ExportCSV(ctx, "."); err == nil {
			fmt.Printf("  saved %s\n", path)
		}
	case "r":
		_ = a.acct.FetchBalance(ctx)
	case "l":
		a.logout(ctx)
	}
	return false
}

func (a *app) withdraw(ctx context.Context) {
	op, err := a.acct.BeginWithdraw(a.promptAmount())
	if err != nil {
		return
	}
	_ = op.Resume(ctx, a.prompt("Enter your PIN: "))
}

func (a *app) transfer(ctx context.Context) {
	recipient := a.prompt("Recipient username: ")
	op, err := a.acct.BeginTransfer(recipient, a.promptAmount())
	if err != nil {
		return
	}
	_ = op.Resume(ctx, a.prompt("Enter your PIN: "))
}

// logout runs the exit gate: an optional 1-5 rating is submitted best-effort,
// then the session terminates regardless.
func (a *app) logout(ctx context.Context) {
	rating := exitgate.RatingSkipped
	if v, err := strconv.Atoi(a.prompt("Rate us 1-5 (enter to skip): ")); err == nil {
		rating = v
	}

	done := make(chan struct{})
	a.gate.Close(ctx, rating, func() { close(done) })
	<-done

	a.sessions.Logout()
	a.acct = nil
	fmt.Println("Logged out.")
}

func (a *app) prompt(label string) string {
	fmt.Print(label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

// promptAmount reads an amount; unparsable input degrades to NaN so the
// account client's validation rejects it uniformly.
func (a *app) promptAmount() float64 {
	v, err := strconv.ParseFloat(a.prompt("Enter amount: "), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
