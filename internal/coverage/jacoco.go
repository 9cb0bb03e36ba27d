package coverage

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// #region convert
// ConvertJaCoCo streams a JaCoCo XML report from r and writes the covered
// lines of every source file as CSV to w. Namespaced reports and packages at
// any depth are accepted. Lines with ci="0" are not covered; source files with
// no covered line are omitted.
func ConvertJaCoCo(r io.Reader, w io.Writer) error {
	dec := xml.NewDecoder(r)
	// JaCoCo reports reference an external DTD that is never resolved.
	dec.Strict = false

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Package Name", "Class Name", "Covered Lines"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	var (
		pkg      string
		inPkg    bool
		source   string
		inSource bool
		covered  []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decode jacoco xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "package":
				pkg, inPkg = attr(el, "name"), true
			case "sourcefile":
				if inPkg {
					source, inSource, covered = attr(el, "name"), true, covered[:0]
				}
			case "line":
				if inSource && attr(el, "ci") != "0" {
					if nr := attr(el, "nr"); nr != "" {
						covered = append(covered, nr)
					}
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "package":
				inPkg = false
			case "sourcefile":
				if inSource && len(covered) > 0 {
					if err := cw.Write([]string{pkg, source, strings.Join(covered, ";")}); err != nil {
						return fmt.Errorf("write csv row: %w", err)
					}
				}
				inSource = false
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// #endregion convert
