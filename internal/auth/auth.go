package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"permitflow/internal/config"
	"permitflow/internal/logging"
	"permitflow/internal/services"
)

// Outcome is the terminal state of a login run.
type Outcome string

const (
	AuthSucceeded   Outcome = "succeeded"
	AuthExhausted   Outcome = "exhausted"
	PageUnreachable Outcome = "page-unreachable"
)

// Portal login selectors.
const (
	selectorAadhaar       = "#ContentPlaceHolder1_txtAadharNumber"
	selectorPassword      = "#ContentPlaceHolder1_txtPassword"
	selectorCaptchaImage  = "#Captcha"
	selectorCaptchaInput  = "#ContentPlaceHolder1_txtCaptcha"
	selectorLoginButton   = "#ContentPlaceHolder1_btn_captcha"
	selectorPostLoginMenu = "#pnlMenuEng"
)

// Page is the browser surface the login flow drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	Sleep(ctx context.Context, d time.Duration) error
	AcceptDialogs()
}

// Recognizer extracts the digits from a CAPTCHA screenshot.
type Recognizer interface {
	RecognizeDigits(ctx context.Context, image []byte) (string, error)
}

// Engine runs the portal login state machine. A run ends in exactly one of
// the three outcomes; only server-side rejections consume login attempts,
// while CAPTCHA recognition failures burn a separate, larger retry budget.
type Engine struct {
	loginURL         string
	aadhaar          string
	password         string
	maxAttempts      int
	recognitionLimit int
	postLoginTimeout time.Duration
	recognizer       Recognizer
	logger           *slog.Logger
}

// NewEngine builds a login engine from configuration.
func NewEngine(cfg *config.Config, recognizer Recognizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		loginURL:         cfg.Portal.LoginURL,
		aadhaar:          cfg.Portal.AadhaarNumber,
		password:         cfg.Portal.Password,
		maxAttempts:      cfg.Portal.MaxLoginAttempts,
		recognitionLimit: cfg.Portal.RecognitionRetryLimit,
		postLoginTimeout: time.Duration(cfg.Portal.PostLoginTimeout) * time.Second,
		recognizer:       recognizer,
		logger:           logger.With(logging.String(logging.FieldComponent, "auth")),
	}
}

// Login drives the portal login flow to a terminal outcome. The page is left
// authenticated with dialog auto-accept installed when the outcome is
// AuthSucceeded; on any other outcome the caller owns closing the page.
func (e *Engine) Login(ctx context.Context, page Page) (Outcome, error) {
	if err := page.Navigate(ctx, e.loginURL); err != nil {
		e.logger.Error("login page unreachable",
			logging.String("url", e.loginURL),
			logging.Error(err))
		return PageUnreachable, services.Wrap(services.ErrPageUnreachable, "auth", "navigate",
			"portal login page did not load", err)
	}

	attempts := 0
	recognitionFailures := 0

	for attempts < e.maxAttempts {
		if err := ctx.Err(); err != nil {
			return AuthExhausted, services.Wrap(services.ErrTransient, "auth", "login", "login canceled", err)
		}

		captcha, err := e.readCaptcha(ctx, page)
		if err != nil {
			recognitionFailures++
			e.logger.Warn("captcha recognition failed",
				logging.Int("recognition_failures", recognitionFailures),
				logging.Int("attempts_used", attempts),
				logging.Error(err))
			if recognitionFailures >= e.recognitionLimit {
				return AuthExhausted, services.Wrap(services.ErrAuthExhausted, "auth", "recognize",
					fmt.Sprintf("captcha recognition failed %d times", recognitionFailures), err)
			}
			if reloadErr := page.Reload(ctx); reloadErr != nil {
				return PageUnreachable, services.Wrap(services.ErrPageUnreachable, "auth", "reload",
					"portal login page did not reload", reloadErr)
			}
			continue
		}

		attempts++
		accepted, err := e.submit(ctx, page, captcha)
		if err != nil {
			return AuthExhausted, err
		}
		if accepted {
			page.AcceptDialogs()
			e.logger.Info("login succeeded",
				logging.Int("attempts_used", attempts),
				logging.Int("recognition_failures", recognitionFailures))
			return AuthSucceeded, nil
		}

		e.logger.Warn("login attempt rejected",
			logging.Int("attempts_used", attempts),
			logging.Int("attempts_max", e.maxAttempts))
		if attempts < e.maxAttempts {
			if reloadErr := page.Reload(ctx); reloadErr != nil {
				return PageUnreachable, services.Wrap(services.ErrPageUnreachable, "auth", "reload",
					"portal login page did not reload", reloadErr)
			}
		}
	}

	return AuthExhausted, services.Wrap(services.ErrAuthExhausted, "auth", "login",
		fmt.Sprintf("portal rejected %d login attempts", attempts), nil)
}

// readCaptcha fills the credential fields, captures the CAPTCHA image, and
// runs recognition. Any failure here counts against the recognition budget,
// not the attempt budget.
func (e *Engine) readCaptcha(ctx context.Context, page Page) (string, error) {
	if err := page.Fill(ctx, selectorAadhaar, e.aadhaar); err != nil {
		return "", fmt.Errorf("fill aadhaar field: %w", err)
	}
	if err := page.Fill(ctx, selectorPassword, e.password); err != nil {
		return "", fmt.Errorf("fill password field: %w", err)
	}
	image, err := page.Screenshot(ctx, selectorCaptchaImage)
	if err != nil {
		return "", fmt.Errorf("capture captcha image: %w", err)
	}
	digits, err := e.recognizer.RecognizeDigits(ctx, image)
	if err != nil {
		return "", fmt.Errorf("recognize captcha: %w", err)
	}
	return digits, nil
}

// submit enters the recognized CAPTCHA and reports whether the portal
// accepted the credentials. Any glitch while filling or clicking counts as a
// rejected attempt, returned as (false, nil); cancellation is the only error.
func (e *Engine) submit(ctx context.Context, page Page, captcha string) (bool, error) {
	if err := page.Fill(ctx, selectorCaptchaInput, captcha); err != nil {
		if ctx.Err() != nil {
			return false, services.Wrap(services.ErrTransient, "auth", "submit", "login canceled", err)
		}
		e.logger.Warn("captcha field not fillable", logging.Error(err))
		return false, nil
	}
	if err := page.Click(ctx, selectorLoginButton); err != nil {
		if ctx.Err() != nil {
			return false, services.Wrap(services.ErrTransient, "auth", "submit", "login canceled", err)
		}
		e.logger.Warn("login button not clickable", logging.Error(err))
		return false, nil
	}
	if err := page.WaitVisible(ctx, selectorPostLoginMenu, e.postLoginTimeout); err != nil {
		if errors.Is(err, context.Canceled) {
			return false, services.Wrap(services.ErrTransient, "auth", "submit", "login canceled", err)
		}
		// The menu never appeared: the portal rejected the attempt.
		return false, nil
	}
	return true, nil
}
