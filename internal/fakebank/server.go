package fakebank

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Server exposes the account service HTTP contract over Fiber.
type Server struct {
	app    *fiber.App
	core   *Core
	otp    OTPStore
	otpTTL time.Duration
	logger *slog.Logger
}

// NewServer wires the stub service routes.
func NewServer(core *Core, otp OTPStore, otpTTL time.Duration, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "SmartATM stub service",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	s := &Server{app: app, core: core, otp: otp, otpTTL: otpTTL, logger: log}
	s.register(app)
	return s
}

// App returns the underlying Fiber app, used by tests via app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve starts serving on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "ATM stub service is running"})
	})

	app.Post("/login", s.handleLogin)
	app.Post("/send_otp", s.handleSendOTP)
	app.Post("/verify_otp", s.handleVerifyOTP)
	app.Get("/balance", s.handleBalance)
	app.Post("/deposit", s.handleDeposit)
	app.Post("/withdraw", s.handleWithdraw)
	app.Post("/transfer", s.handleTransfer)
	app.Post("/change_pin", s.handleChangePIN)
	app.Get("/download_csv", s.handleDownloadCSV)
	app.Post("/rate", s.handleRate)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	message, err := s.core.Login(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": message})
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleSendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	code := GenerateOTP()
	if err := s.otp.Put(c.UserContext(), req.Email, code, s.otpTTL); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// No SMTP here: the emailed code becomes a log line.
	s.logger.Info("otp issued", "email", req.Email, "code", code)
	return c.JSON(fiber.Map{"message": "OTP sent successfully"})
}

type verifyOTPRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
	PIN      string `json:"pin"`
}

func (s *Server) handleVerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	ok, err := s.otp.Consume(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid OTP"})
	}

	if err := s.core.CreateUser(req.Username, req.Email, req.Password, req.PIN); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("new verified user added", "username", req.Username, "email", req.Email)
	return c.JSON(fiber.Map{"message": "Email verified & signup successful!"})
}

func (s *Server) handleBalance(c *fiber.Ctx) error {
	balance, transactions, err := s.core.Balance()
	if err != nil {
		return s.noSession(c)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"balance":      balance,
		"transactions": transactions,
	})
}

type depositRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleDeposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	message, err := s.core.Deposit(req.Amount)
	return s.moneyResponse(c, message, err)
}

type withdrawRequest struct {
	Amount float64 `json:"amount"`
	PIN    string  `json:"pin"`
}

func (s *Server) handleWithdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.PIN) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "PIN is required",
		})
	}

	message, err := s.core.Withdraw(req.Amount, req.PIN)
	return s.moneyResponse(c, message, err)
}

type transferRequest struct {
	ToUser string  `json:"to_user"`
	Amount float64 `json:"amount"`
	PIN    string  `json:"pin"`
}

func (s *Server) handleTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	message, err := s.core.Transfer(req.ToUser, req.Amount, req.PIN)
	return s.moneyResponse(c, message, err)
}

type changePINRequest struct {
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
}

func (s *Server) handleChangePIN(c *fiber.Ctx) error {
	var req changePINRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	message, err := s.core.ChangePIN(req.OldPIN, req.NewPIN)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return s.noSession(c)
		}
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "message": message})
}

func (s *Server) handleDownloadCSV(c *fiber.Ctx) error {
	username := s.core.CurrentUser()
	_, transactions, err := s.core.Balance()
	if err != nil {
		return s.noSession(c)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{"Type", "Amount", "Timestamp"})
	for _, t := range transactions {
		_ = w.Write([]string{
			fmt.Sprint(t["type"]),
			fmt.Sprint(t["amount"]),
			fmt.Sprint(t["timestamp"]),
		})
	}
	w.Flush()

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, fmt.Sprintf("%s_transactions.csv", username)))
	return c.SendString(sb.String())
}

type rateRequest struct {
	Rating float64 `json:"rating"`
}

func (s *Server) handleRate(c *fiber.Ctx) error {
	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	message := s.core.SubmitRating(req.Rating)
	return c.JSON(fiber.Map{"success": true, "message": message})
}

// moneyResponse shapes the shared deposit/withdraw/transfer reply: success
// flag, message and the current balance.
func (s *Server) moneyResponse(c *fiber.Ctx, message string, err error) error {
	if errors.Is(err, ErrNoSession) {
		return s.noSession(c)
	}

	balance, _, _ := s.core.Balance()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
			"balance": balance,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"balance": balance,
	})
}

func (s *Server) noSession(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "No user logged in",
	})
}
