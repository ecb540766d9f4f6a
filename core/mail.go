package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const (
	mailTextExt = ".txt"
	mailHTMLExt = ".gohtml"
)

// mail templates by name (file name without extension), each paired with its base layout
var mailTemplates = struct {
	sync.RWMutex
	text map[string]*texttmpl.Template
	html map[string]*htmltmpl.Template
}{}

type (
	// EmailMessage is rendered from TemplateName when set, else sent with BodyStr as plain text.
	EmailMessage struct {
		To      []mail.Address
		ReplyTo *mail.Address
		Subject string
		BodyStr string

		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// MailContext is what the mail templates see.
	MailContext struct {
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent. A template missing for one format leaves it empty.
func (m *EmailMessage) Render(appName string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	mailTemplates.RLock()
	text, html := mailTemplates.text[m.TemplateName], mailTemplates.html[m.TemplateName]
	mailTemplates.RUnlock()

	data := MailContext{AppName: appName, Data: m.TemplateData}
	var buf bytes.Buffer
	if text != nil && m.BodyStr == "" {
		if err := text.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, mailTextExt)
		}
		m.TextContent = buf.String()
	}
	if html != nil {
		buf.Reset()
		if err := html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, mailHTMLExt)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// ParseEmailTemplates parses the e-mail templates found under dir in fsys, replacing those parsed
// before. Files starting with "_" are base layouts. In strict mode a missing key fails the render.
func ParseEmailTemplates(fsys fs.FS, dir string, strict bool, logger Logger) {
	text := make(map[string]*texttmpl.Template)
	html := make(map[string]*htmltmpl.Template)

	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("listing email templates: %v", err), err)
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		base := path.Join(dir, "_base"+ext)

		switch ext {
		case mailTextExt:
			tmpl, err := texttmpl.ParseFS(fsys, base, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", fp, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			text[name] = tmpl
		case mailHTMLExt:
			tmpl, err := htmltmpl.ParseFS(fsys, base, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", fp, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			html[name] = tmpl
		}
	}

	mailTemplates.Lock()
	mailTemplates.text, mailTemplates.html = text, html
	mailTemplates.Unlock()
}
