// Package testcase holds the declarative test case model and loads it from
// YAML documents under a storage root.
package testcase

// TestCase is a parsed test case document. It is read-only after loading.
type TestCase struct {
	// ID uniquely identifies the test case within a storage root
	ID string `yaml:"id" json:"id"`

	// Description is a human-readable summary
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tags are the declared test case tags, in document order
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Sequences are the ordered test sequences
	Sequences []TestSequence `yaml:"test_sequences" json:"test_sequences"`

	// SourcePath is the file the test case was loaded from
	SourcePath string `yaml:"-" json:"-"`
}

// TestSequence is an ordered group of steps.
type TestSequence struct {
	// ID is the sequence number used in logs and reports
	ID int `yaml:"id" json:"id"`

	// Name is a short label for the sequence
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description explains what the sequence covers
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tags apply to the sequence and are inherited by the test case's tag set
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Steps are executed in document order
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is a single manual or automated action.
// Exactly one of Manual and Command is set.
type Step struct {
	// Step is the step number as written in the document; gaps are allowed
	Step int `yaml:"step" json:"step"`

	// Description explains the step
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Manual marks a step performed by a human; it is never executed
	Manual bool `yaml:"manual,omitempty" json:"manual,omitempty"`

	// Command is the shell command for automated steps
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// CaptureVars are variables extracted after the command runs
	CaptureVars []CaptureVar `yaml:"capture_vars,omitempty" json:"capture_vars,omitempty"`

	// Verification holds shell boolean expressions evaluated after the command
	Verification *Verification `yaml:"verification,omitempty" json:"verification,omitempty"`

	// Expected is the declared outcome used by the verifier
	Expected Expected `yaml:"expected,omitempty" json:"expected,omitempty"`
}

// CaptureVar extracts a named value after a step's command has run.
// Exactly one of Command and Capture is set.
type CaptureVar struct {
	// Name is the shell variable name the value is exported as
	Name string `yaml:"name" json:"name"`

	// Command is run in a shell and its stdout becomes the value
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Capture is a regular expression with exactly one capture group applied to the output
	Capture string `yaml:"capture,omitempty" json:"capture,omitempty"`
}

// Verification holds the shell boolean expressions that decide whether a
// step passed.
type Verification struct {
	// Result checks the command's exit status
	Result string `yaml:"result,omitempty" json:"result,omitempty"`

	// Output checks the command's output
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// General are additional named conditions that must all hold
	General []GeneralCondition `yaml:"general,omitempty" json:"general,omitempty"`
}

// GeneralCondition is a named shell boolean expression.
type GeneralCondition struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition" json:"condition"`
}

// Expected is the outcome a step declares. Empty strings and a nil Success
// mean "not declared" and are not compared.
type Expected struct {
	// Success is the expected success flag
	Success *bool `yaml:"success,omitempty" json:"success,omitempty"`

	// Result is a pattern for the recorded result
	Result string `yaml:"result,omitempty" json:"result,omitempty"`

	// Output is a pattern for the recorded output
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// EffectiveTags returns the test case tags followed by every sequence's tags,
// in order of first appearance and without duplicates.
func (tc TestCase) EffectiveTags() []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(list []string) {
		for _, tag := range list {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	add(tc.Tags)
	for _, seq := range tc.Sequences {
		add(seq.Tags)
	}
	return tags
}

// StepCount returns the number of automated and manual steps.
func (tc TestCase) StepCount() (automated, manual int) {
	for _, seq := range tc.Sequences {
		for _, step := range seq.Steps {
			if step.Manual {
				manual++
			} else {
				automated++
			}
		}
	}
	return automated, manual
}

// HasCaptures reports whether any step declares capture variables.
func (tc TestCase) HasCaptures() bool {
	for _, seq := range tc.Sequences {
		for _, step := range seq.Steps {
			if len(step.CaptureVars) > 0 {
				return true
			}
		}
	}
	return false
}
