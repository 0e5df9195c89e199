package dice

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	maxDiceCount = 1000
	maxDiceSides = 1000
	// exactAverageLimit bounds the outcome space enumerated for keep-highest
	// and keep-lowest averages.
	exactAverageLimit = 200000
)

// Formula is a parsed arithmetic dice expression such as "2d6+3" or
// "(1d8+2)*2". The zero value is the empty formula and evaluates to 0.
type Formula struct {
	raw  string
	root node
}

// FormulaRoll records one dice term of an evaluated formula.
type FormulaRoll struct {
	Sides int   `json:"sides"`
	Faces []int `json:"faces"`
	Kept  []int `json:"kept"`
	Total int   `json:"total"`
}

// Evaluation is the audit trail of one Formula evaluation.
//
// Total == DiceTotal + Static for purely additive formulas.
type Evaluation struct {
	Total     int           `json:"total"`
	DiceTotal int           `json:"dice_total"`
	Static    int           `json:"static"`
	Rolls     []FormulaRoll `json:"rolls,omitempty"`
	Critical  bool          `json:"critical,omitempty"`
}

// Parse parses a dice formula.
//
// Grammar:
//
//	expr   := term (('+'|'-') term)*
//	term   := factor ('*' factor)*
//	factor := INT | [INT] 'd' INT [('kh'|'kl') INT] | '(' expr ')' | '-' factor
//
// Whitespace is ignored. An empty or blank expression yields the empty formula.
func Parse(expr string) (Formula, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Formula{}, nil
	}
	p := &parser{input: strings.ToLower(strings.Join(strings.Fields(trimmed), ""))}
	root, err := p.parseExpr()
	if err != nil {
		return Formula{}, fmt.Errorf("%w %q: %v", ErrInvalidFormula, expr, err)
	}
	if p.pos != len(p.input) {
		return Formula{}, fmt.Errorf("%w %q: unexpected %q at %d", ErrInvalidFormula, expr, p.input[p.pos], p.pos)
	}
	return Formula{raw: trimmed, root: root}, nil
}

// MustParse parses expr and panics on error. Useful for package-level constants.
func MustParse(expr string) Formula {
	f, err := Parse(expr)
	if err != nil {
		panic("dice: " + err.Error())
	}
	return f
}

// Constant returns a formula that always evaluates to value.
func Constant(value int) Formula {
	return Formula{raw: strconv.Itoa(value), root: constNode{value: value}}
}

// String returns the source expression.
func (f Formula) String() string { return f.raw }

// IsZero reports whether f is the empty formula.
func (f Formula) IsZero() bool { return f.root == nil }

// HasDice reports whether evaluating f consumes randomness.
func (f Formula) HasDice() bool {
	return f.root != nil && f.root.hasDice()
}

// Evaluate rolls the formula. A critical evaluation doubles the number of
// dice of every dice term; static terms are unchanged.
func (f Formula) Evaluate(rng Roller, critical bool) Evaluation {
	if f.root == nil {
		return Evaluation{Critical: critical}
	}
	ev := &evaluator{rng: rng, critical: critical}
	total := f.root.eval(ev)
	diceTotal := 0
	for _, roll := range ev.rolls {
		diceTotal += roll.Total
	}
	return Evaluation{
		Total:     total,
		DiceTotal: diceTotal,
		Static:    total - diceTotal,
		Rolls:     ev.rolls,
		Critical:  critical,
	}
}

// Average returns the expected value of the formula.
func (f Formula) Average() float64 {
	if f.root == nil {
		return 0
	}
	return f.root.average()
}

// Min returns the smallest possible result.
func (f Formula) Min() int {
	if f.root == nil {
		return 0
	}
	lo, _ := f.root.bounds()
	return lo
}

// Max returns the largest possible result.
func (f Formula) Max() int {
	if f.root == nil {
		return 0
	}
	_, hi := f.root.bounds()
	return hi
}

// Eval parses and evaluates expr in one call.
func Eval(expr string, rng Roller, critical bool) (Evaluation, error) {
	f, err := Parse(expr)
	if err != nil {
		return Evaluation{}, err
	}
	return f.Evaluate(rng, critical), nil
}

type evaluator struct {
	rng      Roller
	critical bool
	rolls    []FormulaRoll
}

type node interface {
	eval(ev *evaluator) int
	average() float64
	bounds() (int, int)
	hasDice() bool
}

type constNode struct{ value int }

func (n constNode) eval(*evaluator) int { return n.value }
func (n constNode) average() float64 { return float64(n.value) }
func (n constNode) bounds() (int, int) { return n.value, n.value }
func (n constNode) hasDice() bool { return false }

type diceNode struct {
	count   int
	sides   int
	keep    int
	keepLow bool
}

func (n diceNode) kept() int {
	if n.keep > 0 {
		return n.keep
	}
	return n.count
}

func (n diceNode) eval(ev *evaluator) int {
	count, keep := n.count, n.kept()
	if ev.critical {
		count *= 2
		keep *= 2
	}
	rolled, err := RollWithRng(ev.rng, []Spec{{Sides: n.sides, Count: count}})
	if err != nil {
		// parseDice rejects non-positive sides and counts.
		panic(err)
	}
	faces := rolled.Rolls[0].Results
	kept := faces
	if keep < count {
		kept = selectKept(faces, keep, n.keepLow)
	}
	total := 0
	for _, face := range kept {
		total += face
	}
	ev.rolls = append(ev.rolls, FormulaRoll{Sides: n.sides, Faces: faces, Kept: kept, Total: total})
	return total
}

// selectKept keeps the highest (or lowest) faces, preserving roll order.
func selectKept(faces []int, keep int, low bool) []int {
	used := make([]bool, len(faces))
	for range keep {
		best := -1
		for i, face := range faces {
			if used[i] {
				continue
			}
			if best == -1 || (!low && face > faces[best]) || (low && face < faces[best]) {
				best = i
			}
		}
		used[best] = true
	}
	kept := make([]int, 0, keep)
	for i, face := range faces {
		if used[i] {
			kept = append(kept, face)
		}
	}
	return kept
}

func (n diceNode) average() float64 {
	if n.keep == 0 || n.keep == n.count {
		return float64(n.count) * float64(n.sides+1) / 2
	}
	outcomes := 1
	for range n.count {
		outcomes *= n.sides
		if outcomes > exactAverageLimit {
			return float64(n.keep) * float64(n.sides+1) / 2
		}
	}
	faces := make([]int, n.count)
	for i := range faces {
		faces[i] = 1
	}
	sum := 0
	for range outcomes {
		for _, face := range selectKept(faces, n.keep, n.keepLow) {
			sum += face
		}
		for i := range faces {
			faces[i]++
			if faces[i] <= n.sides {
				break
			}
			faces[i] = 1
		}
	}
	return float64(sum) / float64(outcomes)
}

func (n diceNode) bounds() (int, int) { return n.kept(), n.kept() * n.sides }
func (n diceNode) hasDice() bool { return true }

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(ev *evaluator) int {
	l := n.left.eval(ev)
	r := n.right.eval(ev)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	default:
		return l * r
	}
}

func (n binaryNode) average() float64 {
	l, r := n.left.average(), n.right.average()
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	default:
		return l * r
	}
}

func (n binaryNode) bounds() (int, int) {
	llo, lhi := n.left.bounds()
	rlo, rhi := n.right.bounds()
	switch n.op {
	case '+':
		return llo + rlo, lhi + rhi
	case '-':
		return llo - rhi, lhi - rlo
	default:
		products := []int{llo * rlo, llo * rhi, lhi * rlo, lhi * rhi}
		lo, hi := products[0], products[0]
		for _, p := range products[1:] {
			lo = min(lo, p)
			hi = max(hi, p)
		}
		return lo, hi
	}
}

func (n binaryNode) hasDice() bool { return n.left.hasDice() || n.right.hasDice() }

type negNode struct{ operand node }

func (n negNode) eval(ev *evaluator) int { return -n.operand.eval(ev) }
func (n negNode) average() float64 { return -n.operand.average() }
func (n negNode) bounds() (int, int) {
	lo, hi := n.operand.bounds()
	return -hi, -lo
}
func (n negNode) hasDice() bool { return n.operand.hasDice() }

type parser struct {
	input string
	pos   int
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek() == '*' {
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: '*', left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (node, error) {
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing ')' at %d", p.pos)
		}
		p.pos++
		return inner, nil
	case c == 'd':
		return p.parseDice(1)
	case isDigit(c):
		value, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if p.peek() == 'd' {
			return p.parseDice(value)
		}
		return constNode{value: value}, nil
	case c == 0:
		return nil, fmt.Errorf("unexpected end of input")
	default:
		return nil, fmt.Errorf("unexpected %q at %d", c, p.pos)
	}
}

func (p *parser) parseDice(count int) (node, error) {
	p.pos++ // 'd'
	if !isDigit(p.peek()) {
		return nil, fmt.Errorf("missing die size at %d", p.pos)
	}
	sides, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > maxDiceCount || sides <= 0 || sides > maxDiceSides {
		return nil, ErrInvalidDiceSpec
	}
	n := diceNode{count: count, sides: sides}
	if strings.HasPrefix(p.input[p.pos:], "kh") || strings.HasPrefix(p.input[p.pos:], "kl") {
		n.keepLow = p.input[p.pos+1] == 'l'
		p.pos += 2
		keep, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if keep <= 0 || keep > count {
			return nil, fmt.Errorf("keep %d out of range for %d dice", keep, count)
		}
		n.keep = keep
	}
	return n, nil
}

func (p *parser) parseInt() (int, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at %d", start)
	}
	return strconv.Atoi(p.input[start:p.pos])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
