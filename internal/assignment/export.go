package assignment

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// exportHeader is the column layout of the admin export: one row per
// question per submission, answers flattened across the three entities.
var exportHeader = []string{
	"Trainee", "Topic", "Persona", "Peer Companies", "Peer Dieticians",
	"Question", "Own Practice", "Peer 1", "Peer 2", "Submitted At",
}

const exportSheet = "Submissions"

// ExportXLSX writes every submission in the store as an xlsx workbook.
// The questions argument maps topic codes to their question texts; rows for
// unknown topics fall back to the question index.
func ExportXLSX(ctx context.Context, store SubmissionStore, questions map[string][]string, w io.Writer) error {
	subs, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheet)

	if err := writeRow(f, 1, exportHeader); err != nil {
		return err
	}

	row := 2
	for _, sub := range subs {
		qs := questions[sub.TopicCode]
		for i, answers := range sub.Answers {
			question := fmt.Sprintf("Q%d", i+1)
			if i < len(qs) {
				question = qs[i]
			}
			cells := []string{
				sub.UserID,
				sub.TopicCode,
				sub.PersonaName,
				strings.Join(sub.PeerCompanies, ", "),
				strings.Join(sub.PeerDieticians, ", "),
				question,
			}
			for col := 0; col < EntityCols; col++ {
				if col < len(answers) {
					cells = append(cells, answers[col])
				} else {
					cells = append(cells, "")
				}
			}
			cells = append(cells, sub.SubmittedAt.Format("2006-01-02 15:04"))
			if err := writeRow(f, row, cells); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, cells []string) error {
	for i, v := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
