package mailer

import "html/template"

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Forgot your password?</h2>
  <p>Hi {{.Name}},</p>
  <p>Submit a PATCH request with your new password to the link below.
     The link is only valid for 10 minutes.</p>
  <p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
  <p>If you didn't request a password reset, you can safely ignore this email.</p>
</body>
</html>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome to the Pokedex, {{.Name}}!</h2>
  <p>Your trainer account is ready. Sign in to start cataloguing Pokemon
     and leaving reviews.</p>
</body>
</html>`))
