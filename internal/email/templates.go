package email

import (
	"fmt"
	"html"
	"time"
)

// PasswordResetBody renders the HTML body for a password reset email. The
// token is shown alongside the link for clients that strip anchors.
func PasswordResetBody(name, resetLink, token string, expiresAt time.Time) string {
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", html.EscapeString(name))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Reset your password</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; border-radius: 10px; padding: 30px; margin: 20px 0;">
        <h1 style="color: #2c3e50; margin-top: 0;">Reset your password</h1>

        <p>%s</p>

        <p>We received a request to reset the password for your account.</p>

        <p>If you made this request, click the button below to choose a new password:</p>

        <div style="text-align: center; margin: 30px 0;">
            <a href="%s"
               style="background-color: #3498db; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block; font-weight: bold;">
                Reset password
            </a>
        </div>

        <p>Or copy and paste this link into your browser:</p>
        <p style="background-color: #ecf0f1; padding: 10px; border-radius: 5px; word-break: break-all;">
            <code>%s</code>
        </p>

        <p style="color: #e74c3c; font-weight: bold;">This link expires at %s.</p>

        <p>If you did not request a password reset, you can safely ignore this email.</p>

        <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">

        <p style="font-size: 12px; color: #7f8c8d;">
            <strong>Reference token:</strong> <code>%s</code>
        </p>
    </div>
</body>
</html>`, greeting, resetLink, resetLink, expiresAt.UTC().Format(time.RFC1123), token)
}

// EmailVerificationBody renders the HTML body for an address confirmation
// email.
func EmailVerificationBody(name, verifyLink, token string, expiresAt time.Time) string {
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", html.EscapeString(name))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Confirm your email address</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; border-radius: 10px; padding: 30px; margin: 20px 0;">
        <h1 style="color: #2c3e50; margin-top: 0;">Confirm your email address</h1>

        <p>%s</p>

        <p>Thanks for signing up. Confirm this email address so you can recover your account later:</p>

        <div style="text-align: center; margin: 30px 0;">
            <a href="%s"
               style="background-color: #27ae60; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block; font-weight: bold;">
                Confirm email
            </a>
        </div>

        <p>Or copy and paste this link into your browser:</p>
        <p style="background-color: #ecf0f1; padding: 10px; border-radius: 5px; word-break: break-all;">
            <code>%s</code>
        </p>

        <p style="color: #e74c3c; font-weight: bold;">This link expires at %s.</p>

        <p>If you did not create an account, you can safely ignore this email.</p>

        <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">

        <p style="font-size: 12px; color: #7f8c8d;">
            <strong>Reference token:</strong> <code>%s</code>
        </p>
    </div>
</body>
</html>`, greeting, verifyLink, verifyLink, expiresAt.UTC().Format(time.RFC1123), token)
}
