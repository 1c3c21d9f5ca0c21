package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadFloatRows reads a whitespace separated numeric table.
// Empty lines and lines starting with '#' are skipped.
func ReadFloatRows(filename string, minColumns, maxColumns int) ([][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var result [][]float64

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		parts := strings.Fields(line)

		if len(parts) < minColumns || len(parts) > maxColumns {
			if minColumns == maxColumns {
				return nil, fmt.Errorf("invalid format in line %d: %q - expected %d numbers, got %d", lineNumber, line, minColumns, len(parts))
			}
			return nil, fmt.Errorf("invalid format in line %d: %q - expected %d to %d numbers, got %d", lineNumber, line, minColumns, maxColumns, len(parts))
		}

		row := make([]float64, len(parts))
		for i := range parts {
			row[i], err = strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing float in line %d %q: %w", lineNumber, line, err)
			}
		}
		result = append(result, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return result, nil
}

func ReadFloatPairs(filename string) ([][]float64, error) {
	return ReadFloatRows(filename, 2, 2)
}

func GetFilename(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func OpenFile(makeDir bool, outputPath string, fileSuffix, modelName string) (*os.File, error) {
	if makeDir && fileSuffix != "" && fileSuffix != "." {
		if err := os.MkdirAll(outputPath+fileSuffix, 0750); err != nil {
			return nil, fmt.Errorf("unable to create %s: %w", outputPath+fileSuffix, err)
		}
		return os.Create(outputPath + fileSuffix + "/" + modelName + ".csv")
	} else {
		return os.Create(outputPath + modelName + "_" + fileSuffix + ".csv")
	}
}
