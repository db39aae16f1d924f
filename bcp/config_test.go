package bcp

import "testing"

func TestConfig_SendsAllPlayerVars(t *testing.T) {
	cfg := &Config{PlayerVariables: []string{allVarsSentinel}}
	if !cfg.sendsPlayerVar("score") {
		t.Fatal("expected __all__ to match any player variable")
	}
}

func TestConfig_SendsNamedPlayerVarOnly(t *testing.T) {
	cfg := &Config{PlayerVariables: []string{"score"}}
	if !cfg.sendsPlayerVar("score") {
		t.Fatal("expected score to be sent")
	}
	if cfg.sendsPlayerVar("bonus") {
		t.Fatal("expected bonus not to be sent")
	}
}

func TestConfig_NoMachineVarsByDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.sendsMachineVar("balls_in_play") {
		t.Fatal("expected an empty MachineVariables list to send nothing")
	}
}
