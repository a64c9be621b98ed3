package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Template names. They double as the metrics label.
const (
	TemplateWelcome         = "welcome"
	TemplateLoginNotice     = "login_notice"
	TemplatePasswordCode    = "password_code"
	TemplatePasswordChanged = "password_changed"
	TemplateEmailChangeCode = "email_change_code"
	TemplateGoogleLinked    = "google_linked"
	TemplateNotificationsOn = "notifications_on"
	TemplatePremiumKey      = "premium_key"
)

// Message is a rendered email.
type Message struct {
	Template string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// Data is the template input. Fields unused by a template are ignored.
type Data struct {
	Name     string
	Email    string
	Code     string
	Minutes  int
	Device   string
	IP       string
	Location string
	Time     time.Time
}

type tmpl struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const htmlFrame = `<div style="font-family:Roboto,Helvetica,Arial,sans-serif;max-width:516px;margin:0 auto;border:thin solid #dadce0;border-radius:8px;padding:40px 20px;text-align:center">{{template "body" .}}<p style="color:#5f6368;font-size:12px">A1dos Creations</p></div>`

func define(name, subject, text, body string) tmpl {
	return tmpl{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".text").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.Must(htmltemplate.New(name).Parse(htmlFrame)).New("body").Parse(body)),
	}
}

var templates = map[string]tmpl{
	TemplateWelcome: define(TemplateWelcome,
		`🚀 Welcome to A1dos Creations, {{.Name}}! ✨`,
		"Hi {{.Name}},\n\nYour account ({{.Email}}) is ready.\n",
		`<h2>Welcome, {{.Name}}!</h2><p>Your account <strong>{{.Email}}</strong> is ready.</p>`),
	TemplateLoginNotice: define(TemplateLoginNotice,
		`⚠️ New login for user: {{.Name}}`,
		"New sign-in to {{.Email}}\nDevice: {{.Device}}\nIP: {{.IP}}\nLocation: {{.Location}}\nTime: {{.Time.Format \"2006-01-02 15:04 MST\"}}\n\nIf this was not you, revoke the session from your account page.\n",
		`<h2>New sign-in</h2><p>{{.Email}}</p><p>Device: {{.Device}}<br>IP: {{.IP}}<br>Location: {{.Location}}<br>Time: {{.Time.Format "2006-01-02 15:04 MST"}}</p><p>If this was not you, revoke the session from your account page.</p>`),
	TemplatePasswordCode: define(TemplatePasswordCode,
		`{{.Name}} Password Change Verification Code`,
		"Your verification code is {{.Code}}. It expires in {{.Minutes}} minutes.\n",
		`<h2>Password change</h2><p>Your verification code:</p><p style="font-size:28px;letter-spacing:4px"><strong>{{.Code}}</strong></p><p>It expires in {{.Minutes}} minutes.</p>`),
	TemplatePasswordChanged: define(TemplatePasswordChanged,
		`{{.Name}} Password Changed`,
		"The password for {{.Email}} was changed. If this was not you, reset it immediately.\n",
		`<h2>Password changed</h2><p>The password for <strong>{{.Email}}</strong> was changed.</p><p>If this was not you, reset it immediately.</p>`),
	TemplateEmailChangeCode: define(TemplateEmailChangeCode,
		`Change Email for {{.Name}}`,
		"Use code {{.Code}} to confirm {{.Email}} as your new address. It expires in {{.Minutes}} minutes.\n",
		`<h2>Confirm your new email</h2><p>Use this code to confirm <strong>{{.Email}}</strong>:</p><p style="font-size:28px;letter-spacing:4px"><strong>{{.Code}}</strong></p><p>It expires in {{.Minutes}} minutes.</p>`),
	TemplateGoogleLinked: define(TemplateGoogleLinked,
		`❗A Google Account Was Linked To Your A1dos Account.`,
		"A Google account was linked to {{.Email}}. If this was not you, unlink it from your account page.\n",
		`<h2>Google account linked</h2><p>A Google account was linked to <strong>{{.Email}}</strong>.</p><p>If this was not you, unlink it from your account page.</p>`),
	TemplateNotificationsOn: define(TemplateNotificationsOn,
		`✅ Notifications Restored`,
		"Email notifications are on again for {{.Email}}.\n",
		`<h2>Notifications restored</h2><p>Email notifications are on again for <strong>{{.Email}}</strong>.</p>`),
	TemplatePremiumKey: define(TemplatePremiumKey,
		`Welcome to Premium {{.Name}}! 🎉`,
		"Enter this key to unlock STL+: {{.Code}}\n",
		`<h2>🎁 Welcome To Premium!</h2><p>For account: <strong>{{.Name}}</strong> ({{.Email}})</p><p>Enter this key to unlock STL+</p><p style="font-size:22px"><strong>{{.Code}}</strong></p>`),
}

// Render builds the message for template name addressed to to.
func Render(name, to string, d Data) (Message, error) {
	t, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("mail: unknown template %q", name)
	}
	if strings.TrimSpace(to) == "" {
		return Message{}, fmt.Errorf("mail: empty recipient")
	}

	var subj, text, html bytes.Buffer
	if err := t.subject.Execute(&subj, d); err != nil {
		return Message{}, fmt.Errorf("mail: render %s subject: %w", name, err)
	}
	if err := t.text.Execute(&text, d); err != nil {
		return Message{}, fmt.Errorf("mail: render %s text: %w", name, err)
	}
	if err := t.html.Execute(&html, d); err != nil {
		return Message{}, fmt.Errorf("mail: render %s html: %w", name, err)
	}

	return Message{
		Template: name,
		To:       to,
		Subject:  strings.TrimSpace(subj.String()),
		Text:     text.String(),
		HTML:     html.String(),
	}, nil
}
