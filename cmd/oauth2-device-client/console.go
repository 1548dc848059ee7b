package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/templates"
	"github.com/wrale/oauth2-device-client/internal/userinfo"
)

var banner = strings.Repeat("=", 44)

// console writes the human facing output of the flow
type console struct {
	out    io.Writer
	showQR bool
}

func (c *console) showCode(da *deviceflow.DeviceAuthorization) error {
	uri := da.DisplayURI()

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", banner)
	fmt.Fprintf(&b, "User code: %s\n", da.UserCode)
	fmt.Fprintf(&b, "\nPlease visit this URL:\n%s\n", uri)
	if da.VerificationURIComplete == "" {
		b.WriteString("and enter the code above.\n")
	}
	if c.showQR {
		qr, err := templates.TerminalQRCode(uri)
		if err != nil {
			return fmt.Errorf("rendering QR code: %w", err)
		}
		fmt.Fprintf(&b, "\n%s", qr)
	}
	fmt.Fprintf(&b, "%s\n\nWaiting for authorization\n", banner)

	_, err := io.WriteString(c.out, b.String())
	return err
}

// pollFailed echoes the token endpoint's answer, e.g. "authorization_pending..."
func (c *console) pollFailed(perr *deviceflow.PollError) {
	fmt.Fprintf(c.out, "%s...", perr.DisplayCode())
}

// progress marks the end of polling
func (c *console) progress(s deviceflow.State) {
	switch s {
	case deviceflow.StateSuccess:
		fmt.Fprintln(c.out, "Done.")
	case deviceflow.StateDenied, deviceflow.StateExpired, deviceflow.StateFailed:
		fmt.Fprintln(c.out, "Stopped.")
	}
}

func (c *console) welcome(p *userinfo.Profile) {
	fmt.Fprintf(c.out, "\n%s\n", banner)
	fmt.Fprintf(c.out, "Welcome %s!\n", p.DisplayName())
	fmt.Fprintf(c.out, "\nNickname: %s\n", p.Nickname)
	fmt.Fprintf(c.out, "%s\n", banner)
}
