package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPolicy() *DetectionPolicy {
	return &DetectionPolicy{
		IsEnabled:         true,
		DefaultTimeWindow: TimeWindow{Value: 24, Unit: UnitHours},
		Rules: []Rule{
			{
				Name:            "Phone Strict Rule",
				IsActive:        true,
				LogicalOperator: OperatorAnd,
				TimeWindow:      TimeWindow{Value: 1, Unit: UnitHours},
				Conditions:      []Condition{{Field: FieldCustomerPhone, Enabled: true}},
			},
		},
	}
}

func TestDetectionPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *DetectionPolicy)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *DetectionPolicy) {}},
		{name: "no rules is valid", mutate: func(p *DetectionPolicy) { p.Rules = nil }},
		{
			name:    "zero default window",
			mutate:  func(p *DetectionPolicy) { p.DefaultTimeWindow.Value = 0 },
			wantErr: true,
		},
		{
			name:    "unknown default unit",
			mutate:  func(p *DetectionPolicy) { p.DefaultTimeWindow.Unit = "WEEKS" },
			wantErr: true,
		},
		{
			name:    "rule without name",
			mutate:  func(p *DetectionPolicy) { p.Rules[0].Name = "" },
			wantErr: true,
		},
		{
			name:    "unknown operator",
			mutate:  func(p *DetectionPolicy) { p.Rules[0].LogicalOperator = "XOR" },
			wantErr: true,
		},
		{
			name:    "negative rule window",
			mutate:  func(p *DetectionPolicy) { p.Rules[0].TimeWindow.Value = -5 },
			wantErr: true,
		},
		{
			name:   "default window at the upper bound",
			mutate: func(p *DetectionPolicy) { p.DefaultTimeWindow = TimeWindow{Value: MaxWindowDays, Unit: UnitDays} },
		},
		{
			name:   "rule window of 525600 minutes",
			mutate: func(p *DetectionPolicy) { p.Rules[0].TimeWindow = TimeWindow{Value: 525_600, Unit: UnitMinutes} },
		},
		{
			name:    "default window past 365 days",
			mutate:  func(p *DetectionPolicy) { p.DefaultTimeWindow = TimeWindow{Value: 366, Unit: UnitDays} },
			wantErr: true,
		},
		{
			name:    "rule window of 8761 hours",
			mutate:  func(p *DetectionPolicy) { p.Rules[0].TimeWindow = TimeWindow{Value: 8761, Unit: UnitHours} },
			wantErr: true,
		},
		{
			name:    "window that would overflow a duration",
			mutate:  func(p *DetectionPolicy) { p.Rules[0].TimeWindow = TimeWindow{Value: 200_000, Unit: UnitDays} },
			wantErr: true,
		},
		{
			name: "unknown field",
			mutate: func(p *DetectionPolicy) {
				p.Rules[0].Conditions = append(p.Rules[0].Conditions, Condition{Field: "EMAIL", Enabled: true})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)

			err := p.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPolicy), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNilPolicyIsInvalid(t *testing.T) {
	var p *DetectionPolicy
	assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy)
}

func TestEnumsIsValid(t *testing.T) {
	assert.True(t, FieldProductCode.IsValid())
	assert.False(t, FieldType("customer_name").IsValid())
	assert.True(t, OperatorOr.IsValid())
	assert.False(t, LogicalOperator("and").IsValid())
	assert.True(t, UnitDays.IsValid())
	assert.False(t, TimeUnit("SECONDS").IsValid())
}
