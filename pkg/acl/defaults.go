package acl

// Rule is one default-ACL declaration for a class: a subject plus the rights
// new records of that class start with.
type Rule struct {
	Subject string
	Read    bool
	Write   bool
	Role    bool
}

// Defaults holds per-class default ACL rules in declaration order. The zero
// value is usable. Defaults is meant to be populated at initialization time;
// it is not synchronized for concurrent mutation.
type Defaults struct {
	rules map[string][]Rule
}

// NewDefaults returns an empty default-rule registry.
func NewDefaults() *Defaults {
	return &Defaults{rules: make(map[string][]Rule)}
}

// Declare appends a default rule for a class.
//
// Re-declaring the public ("*") subject replaces the previous public rule
// rather than stacking a second one. Declaring a rule with both rights false
// removes any existing rule for that subject; as a first declaration it is a
// no-op, since there is nothing to remove.
func (d *Defaults) Declare(class string, r Rule) {
	if d.rules == nil {
		d.rules = make(map[string][]Rule)
	}
	subject := r.Subject
	if r.Role {
		subject = RoleSubject(r.Subject)
		r.Subject = subject
	}

	existing := d.rules[class]
	if !r.Read && !r.Write {
		d.rules[class] = removeRule(existing, subject)
		return
	}
	if subject == Public {
		if i := indexOfRule(existing, Public); i >= 0 {
			existing[i] = r
			d.rules[class] = existing
			return
		}
	}
	d.rules[class] = append(existing, r)
}

// Rules returns the declared rules for a class in order.
func (d *Defaults) Rules(class string) []Rule {
	if d.rules == nil {
		return nil
	}
	return d.rules[class]
}

// Build materializes the class defaults into a fresh ACL.
func (d *Defaults) Build(class string) *ACL {
	a := New()
	for _, r := range d.Rules(class) {
		a.Apply(r.Subject, r.Read, r.Write)
	}
	return a
}

func indexOfRule(rules []Rule, subject string) int {
	for i, r := range rules {
		if r.Subject == subject {
			return i
		}
	}
	return -1
}

func removeRule(rules []Rule, subject string) []Rule {
	if i := indexOfRule(rules, subject); i >= 0 {
		return append(rules[:i], rules[i+1:]...)
	}
	return rules
}
