package execution

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type PlanStatus string

type StepStatus string

type StepType string

const (
	PlanStatusPlanned   PlanStatus = "planned"
	PlanStatusRunning   PlanStatus = "running"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
)

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusSimulated StepStatus = "simulated"
	StepStatusSubmitted StepStatus = "submitted"
	StepStatusConfirmed StepStatus = "confirmed"
	StepStatusFailed    StepStatus = "failed"
)

const (
	StepTypeNativeTransfer StepType = "native_transfer"
	StepTypeTokenTransfer  StepType = "token_transfer"
	StepTypeContractCall   StepType = "contract_call"
)

type Constraints struct {
	Simulate bool `json:"simulate"`
}

// PlanStep is one transaction of a plan. Value is in wei, Data is hex calldata.
type PlanStep struct {
	StepID          string            `json:"step_id"`
	Type            StepType          `json:"type"`
	Status          StepStatus        `json:"status"`
	ChainID         string            `json:"chain_id"`
	RPCURL          string            `json:"rpc_url,omitempty"`
	Description     string            `json:"description,omitempty"`
	Target          string            `json:"target"`
	Data            string            `json:"data"`
	Value           string            `json:"value"`
	ExpectedOutputs map[string]string `json:"expected_outputs,omitempty"`
	TxHash          string            `json:"tx_hash,omitempty"`
	GasUsed         uint64            `json:"gas_used,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Plan is the journaled record of a write action: who sent what, where, and how it went.
type Plan struct {
	PlanID      string         `json:"plan_id"`
	IntentType  string         `json:"intent_type"`
	Provider    string         `json:"provider,omitempty"`
	Status      PlanStatus     `json:"status"`
	ChainID     string         `json:"chain_id"`
	FromAddress string         `json:"from_address,omitempty"`
	ToAddress   string         `json:"to_address,omitempty"`
	InputAmount string         `json:"input_amount,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	Constraints Constraints    `json:"constraints"`
	Steps       []PlanStep     `json:"steps"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewPlanID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "plan-unknown"
	}
	return fmt.Sprintf("plan_%s", hex.EncodeToString(b))
}

func NewPlan(intentType, provider, chainID string) Plan {
	now := time.Now().UTC().Format(time.RFC3339)
	return Plan{
		PlanID:      NewPlanID(),
		IntentType:  intentType,
		Provider:    provider,
		Status:      PlanStatusPlanned,
		ChainID:     chainID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Constraints: Constraints{Simulate: true},
		Steps:       []PlanStep{},
	}
}

func (p *Plan) Touch() {
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// LastTxHash returns the hash of the last submitted step, or "".
func (p *Plan) LastTxHash() string {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if p.Steps[i].TxHash != "" {
			return p.Steps[i].TxHash
		}
	}
	return ""
}
