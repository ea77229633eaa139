package bfl

import (
	"fmt"
	"log"
)

//ConfigError reports invalid construction parameters: a negative depth, an unknown
//impurity kind, or ensemble sizes that cannot be satisfied by the dataset.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return "batchforest: invalid configuration: " + e.Reason
}

//ShapeError reports a dataset or sample array whose rank or column count is
//inconsistent with what the model expects.
type ShapeError struct {
	Reason string
}

func (e ShapeError) Error() string {
	return "batchforest: shape mismatch: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func shapeErrorf(format string, args ...interface{}) error {
	return ShapeError{Reason: fmt.Sprintf(format, args...)}
}

//HandleError aborts on a non-nil error. It is meant for the command line tools and
//the file format helpers where there is nothing sensible to do with a failure.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}
