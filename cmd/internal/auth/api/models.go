package authapi

import (
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
)

// ---- requests ----

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type revokeSessionRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type updatePasswordRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
	NewPassword      string `json:"newPassword"`
}

type requestEmailChangeRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	NewEmail string `json:"newEmail"`
}

type verifyEmailChangeRequest struct {
	NewEmail string `json:"newEmail"`
	Code     string `json:"code"`
}

type updateNotificationsRequest struct {
	Token              string `json:"token"`
	EmailNotifications *bool  `json:"emailNotifications"`
}

type addTaskEventRequest struct {
	Token           string `json:"token"`
	TaskTitle       string `json:"taskTitle"`
	TaskDueDate     string `json:"taskDueDate"`
	TaskDescription string `json:"taskDescription"`
}

type deleteTaskEventRequest struct {
	Token   string `json:"token"`
	EventID string `json:"eventId"`
}

type claimUpgradeRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// ---- responses ----

type userResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	EmailNotifications bool   `json:"email_notifications"`
	Premium            bool   `json:"premium"`
	GoogleLinked       bool   `json:"google_linked"`
}

type authResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
}

type verifyTokenUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type verifyTokenResponse struct {
	Valid bool            `json:"valid"`
	User  verifyTokenUser `json:"user"`
}

type sessionResponse struct {
	ID           string    `json:"id"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	Location     string    `json:"location"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	Current      bool      `json:"current"`
}

type sessionsResponse struct {
	Success  bool              `json:"success"`
	Sessions []sessionResponse `json:"sessions"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type passwordUpdatedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type userEnvelope struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type googleLinkResponse struct {
	Linked bool `json:"linked"`
}

type calendarResponse struct {
	Success    bool   `json:"success"`
	CalendarID string `json:"calendarId"`
}

type eventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type webhookResponse struct {
	Received bool `json:"received"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		EmailNotifications: u.EmailNotifications,
		Premium:            u.Premium,
		GoogleLinked:       u.GoogleLinked(),
	}
}

func toSessionResponses(views []session.View) []sessionResponse {
	out := make([]sessionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, sessionResponse{
			ID:           v.ID,
			DeviceInfo:   v.DeviceInfo,
			IPAddress:    v.IPAddress,
			Location:     v.Location,
			LoginTime:    v.LoginTime,
			LastActivity: v.LastActivity,
			Current:      v.Current,
		})
	}
	return out
}
