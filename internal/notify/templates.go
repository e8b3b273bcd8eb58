// AngelaMos | 2026
// templates.go

package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"
)

type template struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func newTemplate(name, subject, text, html string) template {
	return template{
		subject: subject,
		text: texttemplate.Must(
			texttemplate.New(name).Funcs(texttemplate.FuncMap{
				"money": FormatAmount,
			}).Parse(text),
		),
		html: htmltemplate.Must(
			htmltemplate.New(name).Funcs(htmltemplate.FuncMap{
				"money": FormatAmount,
			}).Parse(html),
		),
	}
}

func (t template) render(to, key string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: t.subject,
		Text:    text.String(),
		HTML:    html.String(),
		Key:     key,
	}, nil
}

var (
	welcomeTemplate = newTemplate("welcome",
		"Your payroll account",
		`Hello {{.Username}},

Your account has been created with the role {{.Role}}.
You can sign in now.
`,
		`<p>Hello {{.Username}},</p>
<p>Your account has been created with the role <strong>{{.Role}}</strong>.</p>
<p>You can sign in now.</p>
`)

	resetTemplate = newTemplate("password_reset",
		"Password reset",
		`Hello {{.Username}},

Use this token to reset your password:

    {{.Token}}

It expires at {{.Expiry}}. If you did not ask for a reset, ignore this
message.
`,
		`<p>Hello {{.Username}},</p>
<p>Use this token to reset your password:</p>
<pre>{{.Token}}</pre>
<p>It expires at {{.Expiry}}. If you did not ask for a reset, ignore this message.</p>
`)

	employeeAddedTemplate = newTemplate("employee_added",
		"You have been added to payroll",
		`Hello {{.Name}},

You have been added to payroll.

Position: {{.Position}}
Salary: {{money .Salary}}
`,
		`<p>Hello {{.Name}},</p>
<p>You have been added to payroll.</p>
<p>Position: {{.Position}}<br>Salary: {{money .Salary}}</p>
`)

	deductedTemplate = newTemplate("salary_deducted",
		"A deduction was made from your salary",
		`Hello {{.Name}},

{{money .Amount}} was deducted from your salary.
Reason: {{.Reason}}

Current balance: {{money .Balance}}
`,
		`<p>Hello {{.Name}},</p>
<p>{{money .Amount}} was deducted from your salary.<br>Reason: {{.Reason}}</p>
<p>Current balance: <strong>{{money .Balance}}</strong></p>
`)

	paidTemplate = newTemplate("salary_paid",
		"Your salary has been paid",
		`Hello {{.Name}},

Your salary has been paid in full.

Amount: {{money .Amount}}
`,
		`<p>Hello {{.Name}},</p>
<p>Your salary has been paid in full.</p>
<p>Amount: <strong>{{money .Amount}}</strong></p>
`)
)

func Welcome(to, username, role string) (Message, error) {
	return welcomeTemplate.render(to, username, struct {
		Username string
		Role     string
	}{username, role})
}

func PasswordReset(
	to, username, token string,
	expiry time.Time,
) (Message, error) {
	return resetTemplate.render(to, username, struct {
		Username string
		Token    string
		Expiry   string
	}{username, token, expiry.UTC().Format(time.RFC1123)})
}

func EmployeeAdded(
	to, empID, name, position string,
	salary int64,
) (Message, error) {
	return employeeAddedTemplate.render(to, empID, struct {
		Name     string
		Position string
		Salary   int64
	}{name, position, salary})
}

func SalaryDeducted(
	to, empID, name, reason string,
	amount, balance int64,
) (Message, error) {
	return deductedTemplate.render(to, empID, struct {
		Name    string
		Reason  string
		Amount  int64
		Balance int64
	}{name, reason, amount, balance})
}

func SalaryPaid(to, empID, name string, amount int64) (Message, error) {
	return paidTemplate.render(to, empID, struct {
		Name   string
		Amount int64
	}{name, amount})
}

// FormatAmount renders an amount in cents as a decimal with two places.
func FormatAmount(cents int64) string {
	var b strings.Builder
	if cents < 0 {
		b.WriteByte('-')
		cents = -cents
	}

	b.WriteString(strconv.FormatInt(cents/100, 10))
	b.WriteByte('.')

	frac := cents % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))

	return b.String()
}
