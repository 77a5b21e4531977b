package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var columns = []string{"article", "is_business", "description", "title"}

// LoadDirectory loads every .jsonl, .json and .csv file below dirPath, in
// lexical path order.
func LoadDirectory(dirPath string) ([]Row, error) {
	var rows []Row
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supported(path) {
			return nil
		}

		loaded, err := LoadFile(path)
		if err != nil {
			return err
		}
		rows = append(rows, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadFile loads evaluation rows from a single file, picking the format from
// its extension.
func LoadFile(filePath string) ([]Row, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	var rows []Row
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jsonl":
		rows, err = decodeJSONLines(file)
	case ".json":
		err = json.NewDecoder(file).Decode(&rows)
	case ".csv":
		rows, err = decodeCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return rows, nil
}

// Load reads path as a directory or a single file.
func Load(path string) ([]Row, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDirectory(path)
	}
	return LoadFile(path)
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json", ".csv":
		return true
	}
	return false
}

func decodeJSONLines(r io.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row Row
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func decodeCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		isBusiness, err := strconv.ParseBool(strings.TrimSpace(record[index["is_business"]]))
		if err != nil {
			return nil, fmt.Errorf("invalid is_business %q: %w", record[index["is_business"]], err)
		}
		rows = append(rows, Row{
			Article:     record[index["article"]],
			IsBusiness:  isBusiness,
			Description: record[index["description"]],
			Title:       record[index["title"]],
		})
	}
	return rows, nil
}
