package detect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the labels the model was trained on from the given text
// file.  It should contain one label per line.
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}

// LabelIndex returns the class index of the named label, or -1 if not found
func LabelIndex(labels []string, name string) int {

	for i, l := range labels {
		if strings.EqualFold(l, name) {
			return i
		}
	}

	return -1
}

// Label returns the label for a class index, or "unknown" when out of range
func Label(labels []string, class int) string {

	if class < 0 || class >= len(labels) {
		return "unknown"
	}

	return labels[class]
}
