package internal

// opToken is an infix operator seen while parsing an expression.
type opToken struct {
	arith    ArithOp
	compare  CompareOp
	priority int
}

// Comparisons bind loosest, then + and -, then * and /.
var infixOps = map[TokenType]opToken{
	GreaterTP:    {compare: GreaterOp, priority: 1},
	GtKeyWordTP:  {compare: GreaterOp, priority: 1},
	LessTP:       {compare: LessOp, priority: 1},
	LtKeyWordTP:  {compare: LessOp, priority: 1},
	EqualTP:      {compare: EqualOp, priority: 1},
	EqKeyWordTP:  {compare: EqualOp, priority: 1},
	NotEqualTP:   {compare: NotEqualOp, priority: 1},
	NeqKeyWordTP: {compare: NotEqualOp, priority: 1},
	AddTP:        {arith: AddOp, priority: 2},
	MinusTP:      {arith: SubtractOp, priority: 2},
	MultiplyTP:   {arith: MultiplyOp, priority: 3},
	DivideTP:     {arith: DivideOp, priority: 3},
}

func buildExpressionsTree(ops []opToken, exprTerms []Expr) Expr {
	if len(ops) == 0 {
		return exprTerms[0]
	}
	ret, _ := buildExpressionsTree0(ops, exprTerms, 0, 0)
	return ret
}

// buildExpressionsTree0 is precedence climbing over the flat term/operator lists. Merged
// subtrees are written back into exprTerms so the caller continues from them.
func buildExpressionsTree0(ops []opToken, exprTerms []Expr, loc int, minPriority int) (Expr, int) {
	lhs := exprTerms[loc]
	i := loc
	for i < len(ops) && ops[i].priority >= minPriority {
		op := ops[i]
		rhs := exprTerms[i+1]
		j := i + 1
		for j < len(ops) && ops[j].priority > op.priority {
			rhs, j = buildExpressionsTree0(ops, exprTerms, j, ops[j].priority)
		}
		lhs = makeNewExpression(lhs, rhs, op)
		exprTerms[j] = lhs
		i = j
	}
	return lhs, i
}

func makeNewExpression(leftExpr Expr, rightExpr Expr, op opToken) Expr {
	if op.compare != "" {
		return &Comparison{Op: op.compare, Left: leftExpr, Right: rightExpr}
	}
	return &Binary{Op: op.arith, Left: leftExpr, Right: rightExpr}
}

func (parser *Parser) matchOp() bool {
	if !parser.hasRemainTokens() {
		return false
	}
	_, ok := infixOps[parser.currentTokens[parser.currentTokenPos].tp]
	return ok
}

func (parser *Parser) parseExpression() (Expr, error) {
	leftExprTerm, err := parser.parseExpressionTerm()
	if err != nil {
		return nil, err
	}
	var ops []opToken
	exprTerms := []Expr{leftExprTerm}
	for parser.matchOp() {
		op := infixOps[parser.currentTokens[parser.currentTokenPos].tp]
		parser.stepForward()
		exprTerm, err := parser.parseExpressionTerm()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		exprTerms = append(exprTerms, exprTerm)
	}
	return buildExpressionsTree(ops, exprTerms), nil
}

func (parser *Parser) parseExpressionTerm() (Expr, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IntegerTP:
		parser.stepForward()
		return &IntLiteral{Text: token.content}, nil
	case StringTP:
		parser.stepForward()
		return &TextLiteral{Raw: token.content}, nil
	case IdentifierTP:
		parser.stepForward()
		return &Identifier{Name: token.content}, nil
	case LeftParentThesesTP:
		return parser.parseSubExpressionTerm()
	default:
		return nil, parser.makeError(true)
	}
}

func (parser *Parser) parseSubExpressionTerm() (Expr, error) {
	parser.stepForward()
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, ok := parser.expectToken(RightParentThesesTP, true)
	if !ok {
		return nil, parser.makeError(true)
	}
	return expr, nil
}
