package datasource

import (
	"bufio"
	"os"
)

const (
	DefaultBufferSize = 1024 * 1024 // 1MB
)

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, DefaultBufferSize), DefaultBufferSize)
	return scanner
}

// CountLines returns the number of lines in the file at filePath.
func CountLines(filePath string) (int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var n int64
	scanner := newLineScanner(file)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// ScanLines calls fn for every line of filePath with its 1-based number.
// Scanning stops early when fn returns false.
func ScanLines(filePath string, fn func(number int64, text string) bool) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := newLineScanner(file)
	for i := int64(1); scanner.Scan(); i++ {
		if !fn(i, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}
