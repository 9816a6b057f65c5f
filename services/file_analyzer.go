package services

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

var (
	ErrEmptyFile    = errors.New("file is empty or has no header row")
	ErrFileTooLarge = errors.New("file exceeds the maximum import size")
)

const (
	// MaxImportFileSize rejects uploads before they enter the pipeline.
	MaxImportFileSize = 50 * 1024 * 1024

	// Files below this size are counted line by line instead of estimated.
	exactCountThreshold = 1 * 1024 * 1024

	sampleRowLimit     = 10
	estimationRowLimit = 1000
	largeFileRowCount  = 10000

	// Large files tend to carry heavier rows later (quoted fields), so the
	// extrapolation is corrected downward to avoid over-promising progress.
	estimationCorrection = 0.95
)

// FileAnalysis is the synchronous upload-time inspection result the operator
// builds the field mapping from.
type FileAnalysis struct {
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sample_rows"`
	TotalRows  int64      `json:"estimated_total_rows"`
	FileSize   int64      `json:"file_size"`
	IsLarge    bool       `json:"is_large"`
	IsEstimate bool       `json:"is_estimated"`
}

// FileAnalyzerService streams a CSV file once to extract headers, a bounded
// preview sample and a row-count estimate. It never loads the whole file.
type FileAnalyzerService struct{}

func NewFileAnalyzerService() *FileAnalyzerService {
	return &FileAnalyzerService{}
}

// Analyze inspects the CSV at path in a single forward pass.
func (s *FileAnalyzerService) Analyze(path string) (*FileAnalysis, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxImportFileSize {
		return nil, ErrFileTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, 64*1024))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, err
	}
	if !hasAnyValue(headers) {
		return nil, ErrEmptyFile
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	headerBytes := reader.InputOffset()

	analysis := &FileAnalysis{
		Headers:  headers,
		FileSize: info.Size(),
	}

	exact := info.Size() < exactCountThreshold
	var dataRows int64
	var sampledBytes int64

	for {
		row, err := reader.Read()
		if err == io.EOF {
			exact = true
			break
		}
		if err != nil {
			// A malformed row still counts toward the total; the orchestrator
			// will surface it as a row error during the real run.
			dataRows++
			continue
		}
		if !hasAnyValue(row) {
			continue
		}
		dataRows++
		if len(analysis.SampleRows) < sampleRowLimit {
			analysis.SampleRows = append(analysis.SampleRows, row)
		}
		if !exact {
			sampledBytes = reader.InputOffset() - headerBytes
			if dataRows >= estimationRowLimit {
				break
			}
		}
	}

	if exact {
		analysis.TotalRows = dataRows
		analysis.IsEstimate = false
	} else {
		analysis.TotalRows = extrapolateRowCount(info.Size()-headerBytes, dataRows, sampledBytes)
		analysis.IsEstimate = true
	}
	analysis.IsLarge = analysis.TotalRows > largeFileRowCount

	return analysis, nil
}

// extrapolateRowCount projects the total row count from the bytes consumed by
// the sampled rows. Falls back to size/100 when the sample is unusable.
func extrapolateRowCount(dataBytes, sampleRows, sampleBytes int64) int64 {
	if sampleRows <= 0 || sampleBytes <= 0 {
		return dataBytes / 100
	}
	bytesPerRow := float64(sampleBytes) / float64(sampleRows)
	estimated := int64(float64(dataBytes) / bytesPerRow * estimationCorrection)
	if estimated < sampleRows {
		estimated = sampleRows
	}
	return estimated
}

func hasAnyValue(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
