package calculator

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"base-distance/internal/models"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

var (
	ErrEmptyPointSet     = errors.New("base and subbase point sets must be non-empty")
	ErrEmptyMatrix       = errors.New("distance matrix is empty, calculate distances first")
	ErrDimensionMismatch = errors.New("distance matrix does not match point sets")
)

// Matrix holds great-circle distances in miles indexed [base][subbase].
type Matrix [][]float64

func (m Matrix) Rows() int { return len(m) }

func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

func (m Matrix) Empty() bool { return m.Rows() == 0 || m.Cols() == 0 }

// ComputeMatrix evaluates every base/subbase pair. Rows are split into
// contiguous chunks, one goroutine per CPU; each goroutine only writes its own rows.
func ComputeMatrix(baseList, subbaseList []models.Point, onProgress ProgressCallback, logger LoggerCallback) (Matrix, error) {
	if len(baseList) == 0 || len(subbaseList) == 0 {
		return nil, ErrEmptyPointSet
	}
	if logger == nil {
		logger = func(string) {}
	}

	total := len(baseList)
	matrix := make(Matrix, total)

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunkSize := (total + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	var processedCount int64 = 0

	logger(fmt.Sprintf("Starting distance matrix with %d CPUs, %d bases, %d subbases", numCPU, len(baseList), len(subbaseList)))

	for i := 0; i < numCPU; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			for idx := s; idx < e; idx++ {
				base := baseList[idx]
				row := make([]float64, len(subbaseList))
				for j, sub := range subbaseList {
					row[j] = base.DistanceTo(sub)
				}
				matrix[idx] = row

				count := atomic.AddInt64(&processedCount, 1)
				if count%500 == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			}
		}(start, end)
	}

	wg.Wait()

	if onProgress != nil {
		onProgress(total, total, "")
	}

	logger("Distance matrix calculated successfully.")
	return matrix, nil
}
