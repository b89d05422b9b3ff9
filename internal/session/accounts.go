package session

import (
	"context"
	"net/http"

	"github.com/travelo/travelo-cli/internal/backend"
	"github.com/travelo/travelo-cli/pkg/models"
)

// The account operations below are plain request/response calls that gate
// entry into Login but never touch session state themselves. Register in
// particular does not auto-login; the caller presents the verification
// step or an explicit login next.

// Register creates a new account and returns the backend's message
func (m *Manager) Register(ctx context.Context, reg models.Registration) (string, error) {
	return m.accountCall(ctx, "/auth/register", reg,
		"Registration successful. Please check your email.",
		"Registration failed.")
}

// VerifyCode confirms the emailed verification code
func (m *Manager) VerifyCode(ctx context.Context, email, code string) (string, error) {
	body := map[string]string{"email": email, "code": code}
	return m.accountCall(ctx, "/auth/verify-code", body,
		"Verification successful. You can log in now.",
		"The code is invalid or has expired.")
}

// ResendVerification requests a fresh verification email
func (m *Manager) ResendVerification(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email": email}
	return m.accountCall(ctx, "/auth/resend-verification", body,
		"Verification email sent again.",
		"Could not resend the verification email.")
}

// ForgotPassword requests a password reset link
func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email": email}
	return m.accountCall(ctx, "/auth/forgot-password", body,
		"A password reset link has been sent to your email.",
		"Password reset request failed.")
}

// ResetPassword sets a new password using the emailed reset token
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	body := map[string]string{"token": token, "newPassword": newPassword}
	return m.accountCall(ctx, "/auth/reset-password", body,
		"Your password has been reset.",
		"Password reset failed.")
}

// accountCall posts one account request and notifies its outcome once,
// preferring the backend's message over the defaults
func (m *Manager) accountCall(ctx context.Context, path string, body interface{}, successDefault, failureDefault string) (string, error) {
	var resp models.MessageResponse
	if err := m.api.Do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		msg := messageOf(err, failureDefault)
		m.notifier.Error(msg)
		return "", backend.NewError(kindOf(err), msg)
	}
	msg := resp.Message
	if msg == "" {
		msg = successDefault
	}
	m.notifier.Success(msg)
	return msg, nil
}
