package growingspheres

import "fmt"

// Target decides whether a predicted label makes a point an enemy.
type Target interface {
	Matches(label int) bool
	fmt.Stringer
}

// AnyOtherClass matches every label except the original one.
type AnyOtherClass int

// Matches reports label != original.
func (o AnyOtherClass) Matches(label int) bool { return label != int(o) }

func (o AnyOtherClass) String() string { return fmt.Sprintf("any class but %d", int(o)) }

// ExactClass matches a single target label.
type ExactClass int

// Matches reports label == target.
func (c ExactClass) Matches(label int) bool { return label == int(c) }

func (c ExactClass) String() string { return fmt.Sprintf("class %d", int(c)) }

// NewTarget builds the target condition once: ExactClass when target is set,
// AnyOtherClass of the original label otherwise.
func NewTarget(original int, target *int) Target {
	if target != nil {
		return ExactClass(*target)
	}
	return AnyOtherClass(original)
}
