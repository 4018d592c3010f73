package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes each message as an HTML file into dir.
type DevSender struct {
	dir string
	now func() time.Time
}

func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9\-_.]`)

func (d *DevSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}

	name := msg.Tag
	if name == "" {
		name = msg.Subject
	}
	name = unsafeFilename.ReplaceAllString(strings.ReplaceAll(strings.ToLower(name), " ", "_"), "")
	path := filepath.Join(d.dir, d.now().Format("2006_01_02_150405.000")+"_"+name+".html")

	body := fmt.Sprintf("<!-- to: %s -->\n<!-- subject: %s -->\n%s", msg.To, msg.Subject, msg.HTMLBody)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}
	return nil
}
