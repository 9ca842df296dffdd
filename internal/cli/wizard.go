package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/howyoubeen/internal/server/onboarding"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// Onboarder is the part of onboarding.Orchestrator the wizard drives.
type Onboarder interface {
	Start(ctx context.Context) (string, error)
	SubmitBasicInfo(ctx context.Context, id string, info onboarding.BasicInfo) error
	AddDataSource(ctx context.Context, id, platform string, creds onboarding.SourceCredentials) (*onboarding.SourceSummary, error)
	UploadDocument(ctx context.Context, id, filename, contentType string, content []byte, description string) (*onboarding.UploadedDocument, error)
	ConfigureVisibility(ctx context.Context, id string, cats []visibility.Category) error
	Process(ctx context.Context, id string) (*onboarding.ProcessResult, error)
}

// Wizard walks a user through onboarding on a terminal.
type Wizard struct {
	svc       Onboarder
	reader    *bufio.Reader
	out       io.Writer
	platforms []string
	readFile  func(string) ([]byte, error)
	getSecret func(prompt string, w io.Writer) (string, error)
}

func NewWizard(svc Onboarder, in io.Reader, out io.Writer, platforms []string) *Wizard {
	return &Wizard{
		svc:       svc,
		reader:    bufio.NewReader(in),
		out:       out,
		platforms: platforms,
		readFile:  os.ReadFile,
		getSecret: GetSecret,
	}
}

// Run performs every onboarding step and returns the processed result.
func (w *Wizard) Run(ctx context.Context) (*onboarding.ProcessResult, error) {
	id, err := w.svc.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintf(w.out, "Session %s started.\n", id)

	if err := w.basicInfo(ctx, id); err != nil {
		return nil, err
	}
	if err := w.sources(ctx, id); err != nil {
		return nil, err
	}
	if err := w.documents(ctx, id); err != nil {
		return nil, err
	}
	if err := w.chooseVisibility(ctx, id); err != nil {
		return nil, err
	}

	res, err := w.svc.Process(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("process session %s: %w", id, err)
	}
	fmt.Fprintf(w.out, "\nProfile ready: %s\n\n%s\n", res.ProfileURL, res.AISummary)
	for _, s := range res.NextSteps {
		fmt.Fprintf(w.out, "  - %s\n", s)
	}
	return res, nil
}

func (w *Wizard) basicInfo(ctx context.Context, id string) error {
	for {
		var info onboarding.BasicInfo
		var err error
		if info.Username, err = GetSimpleText(w.reader, "Username", w.out); err != nil {
			return err
		}
		if info.Email, err = GetSimpleText(w.reader, "Email", w.out); err != nil {
			return err
		}
		if info.FullName, err = GetSimpleText(w.reader, "Full name", w.out); err != nil {
			return err
		}
		if info.Bio, err = GetMultiline(w.reader, "Short bio (optional)", w.out); err != nil {
			return err
		}

		err = w.svc.SubmitBasicInfo(ctx, id, info)
		if err == nil {
			return nil
		}
		fmt.Fprintf(w.out, "error: %v\n", err)
		again, cerr := Confirm(w.reader, "Try again?", w.out)
		if cerr != nil {
			return cerr
		}
		if !again {
			return err
		}
	}
}

func (w *Wizard) sources(ctx context.Context, id string) error {
	prompt := fmt.Sprintf("Platform to connect (%s), empty to skip", strings.Join(w.platforms, ", "))
	for {
		platform, err := GetSimpleText(w.reader, prompt, w.out)
		if err != nil {
			return err
		}
		if platform == "" {
			return nil
		}
		ident, err := GetSimpleText(w.reader, "Account or URL", w.out)
		if err != nil {
			return err
		}
		creds := onboarding.SourceCredentials{Identifier: ident}
		if platform == "github" {
			if creds.Token, err = w.getSecret("Access token (optional)", w.out); err != nil {
				return err
			}
		}

		sum, err := w.svc.AddDataSource(ctx, id, platform, creds)
		if err != nil {
			fmt.Fprintf(w.out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(w.out, "Connected %s %s: %d events, %d facts.\n",
			sum.Platform, sum.Identifier, sum.Summary.EventsGenerated, sum.Summary.FactsGenerated)
	}
}

func (w *Wizard) documents(ctx context.Context, id string) error {
	for {
		path, err := GetSimpleText(w.reader, "Document to upload, empty to skip", w.out)
		if err != nil {
			return err
		}
		if path == "" {
			return nil
		}
		content, err := w.readFile(path)
		if err != nil {
			fmt.Fprintf(w.out, "error: %v\n", err)
			continue
		}
		desc, err := GetSimpleText(w.reader, "Description", w.out)
		if err != nil {
			return err
		}

		name := filepath.Base(path)
		doc, err := w.svc.UploadDocument(ctx, id, name, mime.TypeByExtension(filepath.Ext(name)), content, desc)
		if err != nil {
			fmt.Fprintf(w.out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(w.out, "Uploaded %s (%d bytes).\n", doc.Filename, doc.Size)
	}
}

func (w *Wizard) chooseVisibility(ctx context.Context, id string) error {
	for {
		raw, err := GetSimpleText(w.reader,
			fmt.Sprintf("Visibility tiers, comma separated (empty for %s)", visibility.Default.Tier), w.out)
		if err != nil {
			return err
		}
		cats, err := parseTiers(raw)
		if err == nil {
			err = w.svc.ConfigureVisibility(ctx, id, cats)
		}
		if err == nil {
			return nil
		}
		fmt.Fprintf(w.out, "error: %v\n", err)
	}
}

func parseTiers(raw string) ([]visibility.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return []visibility.Category{visibility.Default}, nil
	}
	var cats []visibility.Category
	for _, part := range strings.Split(raw, ",") {
		tier, err := visibility.ParseTier(part)
		if err != nil {
			return nil, err
		}
		c, err := visibility.New(tier, "")
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}
