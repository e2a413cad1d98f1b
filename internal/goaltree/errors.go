package goaltree

import "errors"

var (
	ErrNodeNotFound       = errors.New("goaltree: node not found")
	ErrNotLeaf            = errors.New("goaltree: node is not a leaf")
	ErrInvalidBinding     = errors.New("goaltree: invalid metric binding")
	ErrNotMetricBound     = errors.New("goaltree: node is not metric-bound")
	ErrInvalidMetricValue = errors.New("goaltree: invalid metric value")
	ErrInvalidPercent     = errors.New("goaltree: invalid percent")
)
