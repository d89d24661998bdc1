package vision

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// tsvWord is one word row from tesseract TSV output.
type tsvWord struct {
	block, par, line          int
	left, top, width, height  int
	pageW, pageH              int
	conf                      float64
	text                      string
}

// tesseractTSV runs tesseract in TSV mode and parses word rows.
func (p *Processor) tesseractTSV(ctx context.Context, path, lang string) ([]tsvWord, error) {
	args := []string{path, "stdout", "-l", lang}
	if p.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", p.cfg.PSM))
	}
	if p.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", p.cfg.OEM))
	}
	if p.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := p.runner.Run(ctx, p.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract TSV: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out)), nil
}

// parseTSV extracts word rows plus page dimensions from TSV output.
// Columns: level page block par line word left top width height conf text.
func parseTSV(out string) []tsvWord {
	lines := strings.Split(out, "\n")
	var words []tsvWord
	pageW, pageH := 0, 0
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue // malformed row
		}
		level, _ := strconv.Atoi(cols[0])
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		if level == 1 {
			pageW, pageH = width, height
			continue
		}
		if level != 5 {
			continue // only word rows carry text
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		lineNo, _ := strconv.Atoi(cols[4])
		words = append(words, tsvWord{
			block: block, par: par, line: lineNo,
			left: left, top: top, width: width, height: height,
			pageW: pageW, pageH: pageH,
			conf: conf, text: text,
		})
	}
	return words
}

// assembleBlocks groups word rows into lines and lines into typed text
// blocks, and derives the mean word confidence in 0..1.
func assembleBlocks(words []tsvWord) ([]entity.TextBlock, string, float32) {
	if len(words) == 0 {
		return nil, "", 0
	}

	type lineKey struct{ block, par, line int }
	lineOrder := []lineKey{}
	lineWords := map[lineKey][]tsvWord{}
	for _, w := range words {
		k := lineKey{w.block, w.par, w.line}
		if _, ok := lineWords[k]; !ok {
			lineOrder = append(lineOrder, k)
		}
		lineWords[k] = append(lineWords[k], w)
	}

	var blocks []entity.TextBlock
	var full strings.Builder
	var confSum float64
	var confN int

	for _, k := range lineOrder {
		ws := lineWords[k]
		var parts []string
		minL, minT := ws[0].left, ws[0].top
		maxR, maxB := ws[0].left+ws[0].width, ws[0].top+ws[0].height
		var lineConf float64
		for _, w := range ws {
			parts = append(parts, w.text)
			lineConf += w.conf
			confSum += w.conf
			confN++
			if w.left < minL {
				minL = w.left
			}
			if w.top < minT {
				minT = w.top
			}
			if r := w.left + w.width; r > maxR {
				maxR = r
			}
			if b := w.top + w.height; b > maxB {
				maxB = b
			}
		}
		text := strings.Join(parts, " ")
		full.WriteString(text)
		full.WriteByte('\n')

		pageW, pageH := ws[0].pageW, ws[0].pageH
		box := entity.BoundingBox{}
		if pageW > 0 && pageH > 0 {
			box = entity.BoundingBox{
				X:      float64(minL) / float64(pageW),
				Y:      float64(minT) / float64(pageH),
				Width:  float64(maxR-minL) / float64(pageW),
				Height: float64(maxB-minT) / float64(pageH),
			}
		}
		blocks = append(blocks, entity.TextBlock{
			Text:       text,
			Type:       classifyLine(text),
			Box:        box,
			Confidence: float32(lineConf / float64(len(ws)) / 100.0),
		})
	}

	mean := float32(confSum / float64(confN) / 100.0)
	return blocks, strings.TrimRight(full.String(), "\n"), mean
}

var bulletPrefixes = []string{"-", "*", "•", "·"}

// classifyLine tags a line as heading, list, table or paragraph.
func classifyLine(text string) constants.BlockType {
	trimmed := strings.TrimSpace(text)
	for _, b := range bulletPrefixes {
		if strings.HasPrefix(trimmed, b+" ") {
			return constants.BlockList
		}
	}
	if len(trimmed) > 2 && trimmed[1] == '.' && trimmed[0] >= '0' && trimmed[0] <= '9' {
		return constants.BlockList
	}
	if looksTabular(trimmed) {
		return constants.BlockTable
	}
	fields := strings.Fields(trimmed)
	if len(fields) > 0 && len(fields) <= 6 && !strings.HasSuffix(trimmed, ".") && isMostlyUpper(trimmed) {
		return constants.BlockHeading
	}
	return constants.BlockParagraph
}

// looksTabular detects column regularity: multiple runs of 2+ spaces
// or tabs separating value-like tokens.
func looksTabular(s string) bool {
	if strings.Count(s, "\t") >= 2 {
		return true
	}
	return strings.Count(s, "  ") >= 2
}

func isMostlyUpper(s string) bool {
	upper, letters := 0, 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters > 0 && float64(upper)/float64(letters) > 0.7
}
