// Package report renders a session's diagnosis summary as a downloadable PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"github.com/Masudi2022/Shifaa-fyp/internal/dialogue"
	"github.com/Masudi2022/Shifaa-fyp/internal/ml"
)

type Service struct {
	fontPaths []string
}

func NewService() *Service {
	return &Service{
		// DejaVuSans covers the accented characters in the knowledge base.
		fontPaths: []string{
			"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		},
	}
}

// DiagnosisPDF renders the session's symptoms, ranked predictions and top
// advice into a single-page report.
func (s *Service) DiagnosisPDF(sess *dialogue.Session, preds []ml.Prediction, enriched []dialogue.EnrichedPrediction) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF (is ttf-dejavu installed?): %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Ripoti ya Uchunguzi wa Dalili")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Tarehe: %s", time.Now().Format("02.01.2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Kikao: %s", sess.ID))
	pdf.Br(15)
	if sess.UserEmail != "" {
		pdf.Cell(nil, fmt.Sprintf("Mtumiaji: %s", sess.UserEmail))
		pdf.Br(15)
	}
	pdf.Br(10)

	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Dalili zilizothibitishwa:")
	pdf.Br(15)
	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	if len(sess.Symptoms) == 0 {
		pdf.Cell(nil, "- Hakuna dalili zilizorekodiwa.")
		pdf.Br(15)
	}
	for _, sym := range sess.Symptoms {
		pdf.Cell(nil, "- "+strings.ReplaceAll(sym, "_", " "))
		pdf.Br(12)
	}
	pdf.Br(10)

	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Magonjwa yanayowezekana:")
	pdf.Br(15)
	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	for _, p := range preds {
		pdf.Cell(nil, fmt.Sprintf("- %s (%.0f%%)", p.Disease, p.Probability*100))
		pdf.Br(12)
	}
	pdf.Br(10)

	if len(enriched) > 0 {
		adv := enriched[0].Advice
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Ushauri:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		for _, block := range []struct {
			label string
			items []string
		}{
			{"Vipimo", adv.Tests},
			{"Tiba", adv.Treatment},
			{"Kinga", adv.Prevention},
			{"Ushauri wa nyumbani", adv.HomeCare},
			{"Dalili za hatari", adv.DangerSigns},
		} {
			if len(block.items) == 0 {
				continue
			}
			line := block.label + ": " + strings.Join(block.items, "; ")
			lines, _ := pdf.SplitText(line, 500)
			for _, l := range lines {
				pdf.Cell(nil, l)
				pdf.Br(12)
			}
			pdf.Br(3)
		}
		if adv.Note != "" {
			lines, _ := pdf.SplitText(adv.Note, 500)
			for _, l := range lines {
				pdf.Cell(nil, l)
				pdf.Br(12)
			}
		}
	}

	pdf.SetY(800)
	if err := pdf.SetFont("DejaVu", "", 9); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Huu ni mwongozo wa msaada. Si badala ya uchunguzi wa daktari.")

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
