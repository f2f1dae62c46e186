package queue

import (
	"encoding/json"
	"fmt"

	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/types"
)

// Payload shapes, one per types.OpKind. Each is serialized as opaque
// JSON into a PendingOp row and reconstructed at replay time.

// CommentPayload backs OpComment.
type CommentPayload struct {
	Number uint64 `json:"number"`
	Body   string `json:"body"`
}

// NumberPayload backs OpClose and OpReopen.
type NumberPayload struct {
	Number uint64 `json:"number"`
}

// LabelPayload backs OpLabelAdd and OpLabelRemove.
type LabelPayload struct {
	Number uint64 `json:"number"`
	Label  string `json:"label"`
}

// AssignPayload backs OpAssign.
type AssignPayload struct {
	Number uint64 `json:"number"`
	User   string `json:"user"`
}

// AssignGoalPayload backs OpAssignGoal.
type AssignGoalPayload struct {
	Number uint64 `json:"number"`
	GoalID string `json:"goal_id"`
}

// CloseGoalPayload backs OpCloseGoal.
type CloseGoalPayload struct {
	GoalID string `json:"goal_id"`
}

// OpCreate serializes types.CreateIssueRequest and OpCreateGoal
// serializes types.CreateGoalRequest directly.

// Marshal serializes a payload value for queueing.
func Marshal(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal op payload: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return ferrors.Wrap("decode op payload", ferrors.ErrMalformed, err)
	}
	return nil
}

// DescribeOp renders an op for status output and replay logging.
func DescribeOp(op types.PendingOp) string {
	return fmt.Sprintf("%s#%d %s", op.RemoteID, op.ID, op.OpKind)
}
