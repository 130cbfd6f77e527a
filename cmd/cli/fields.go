package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/and161185/doc-issuer/internal/schema"
)

// addFieldFlags fills b from repeated --field label=value flags.
func addFieldFlags(b *schema.Builder, specs []string) error {
	for _, s := range specs {
		label, value, ok := strings.Cut(s, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return fmt.Errorf("bad --field %q (want label=value)", s)
		}
		b.AddField(label)
		if err := b.UpdateFieldValue(b.Len()-1, value); err != nil {
			return err
		}
	}
	return nil
}

// promptFields asks for labels until an empty one, then a value for each.
// An empty label cancels the prompt and adds nothing.
func promptFields(b *schema.Builder, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	ask := func(q string) (string, bool) {
		fmt.Fprint(out, q)
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}
	for {
		label, ok := ask("Field label (empty to finish): ")
		if !ok || label == "" {
			return sc.Err()
		}
		b.AddField(label)
		value, _ := ask(fmt.Sprintf("%s: ", label))
		if err := b.UpdateFieldValue(b.Len()-1, value); err != nil {
			return err
		}
	}
}
