// Package prompt asks the operator to confirm each project before it is migrated.
package prompt

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

const (
	responseYesShortConstant = "y"
	responseYesConstant      = "yes"
	responseAllShortConstant = "a"
	responseAllConstant      = "all"
)

// ConfirmationPolicy specifies whether the orchestrator asks before each project.
type ConfirmationPolicy int

const (
	// ConfirmationPrompt asks the operator before each project.
	ConfirmationPrompt ConfirmationPolicy = iota
	// ConfirmationAssumeYes proceeds without asking.
	ConfirmationAssumeYes
)

// ConfirmationPolicyFromBool converts the assume-yes setting into a policy.
func ConfirmationPolicyFromBool(assumeYes bool) ConfirmationPolicy {
	if assumeYes {
		return ConfirmationAssumeYes
	}
	return ConfirmationPrompt
}

// ShouldPrompt reports whether the operator must be asked.
func (policy ConfirmationPolicy) ShouldPrompt() bool {
	return policy != ConfirmationAssumeYes
}

// ConfirmationResult captures one answer.
type ConfirmationResult struct {
	Confirmed  bool
	ApplyToAll bool
}

// Prompter collects confirmations.
type Prompter interface {
	Confirm(prompt string) (ConfirmationResult, error)
}

// IOConfirmationPrompter reads confirmation responses from an io.Reader. Calls are serialized.
type IOConfirmationPrompter struct {
	mutex  sync.Mutex
	reader *bufio.Reader
	writer io.Writer
}

// NewIOConfirmationPrompter constructs a prompter from the provided reader and writer.
func NewIOConfirmationPrompter(input io.Reader, output io.Writer) *IOConfirmationPrompter {
	return &IOConfirmationPrompter{reader: bufio.NewReader(input), writer: output}
}

// Confirm writes the prompt and interprets affirmative responses (y/yes) and blanket approval (a/all).
func (prompter *IOConfirmationPrompter) Confirm(prompt string) (ConfirmationResult, error) {
	prompter.mutex.Lock()
	defer prompter.mutex.Unlock()

	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return ConfirmationResult{}, writeError
		}
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil && !errors.Is(readError, io.EOF) {
		return ConfirmationResult{}, readError
	}

	switch strings.TrimSpace(strings.ToLower(response)) {
	case responseYesShortConstant, responseYesConstant:
		return ConfirmationResult{Confirmed: true}, nil
	case responseAllShortConstant, responseAllConstant:
		return ConfirmationResult{Confirmed: true, ApplyToAll: true}, nil
	default:
		return ConfirmationResult{}, nil
	}
}

// Gate applies a ConfirmationPolicy and remembers a blanket approval for the rest of the run.
type Gate struct {
	mutex      sync.Mutex
	policy     ConfirmationPolicy
	prompter   Prompter
	approveAll bool
}

// NewGate constructs a Gate. A nil prompter with a prompting policy declines every project.
func NewGate(policy ConfirmationPolicy, prompter Prompter) *Gate {
	return &Gate{policy: policy, prompter: prompter}
}

// Allow reports whether the operator approved the prompt.
func (gate *Gate) Allow(prompt string) (bool, error) {
	if !gate.policy.ShouldPrompt() {
		return true, nil
	}

	gate.mutex.Lock()
	defer gate.mutex.Unlock()

	if gate.approveAll {
		return true, nil
	}
	if gate.prompter == nil {
		return false, nil
	}

	result, confirmError := gate.prompter.Confirm(prompt)
	if confirmError != nil {
		return false, confirmError
	}
	if result.ApplyToAll {
		gate.approveAll = true
	}
	return result.Confirmed, nil
}
