package database

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// IsConditionalCheckFailed reports a failed condition on a single write.
func IsConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// CancelledConditions returns the indexes of transaction items whose
// condition failed, or nil when err is not a condition-driven cancellation.
func CancelledConditions(err error) []int {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}

	var failed []int
	for i, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == conditionalCheckFailed {
			failed = append(failed, i)
		}
	}
	return failed
}
