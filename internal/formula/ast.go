package formula

import (
	"fmt"
	"math"
)

// Expr 编译后的表达式（算子树，无任何代码执行能力）
type Expr struct {
	root  node
	nodes int
}

// node 算子树节点
type node interface {
	eval(x float64) float64
}

type numberNode struct {
	value float64
}

func (n *numberNode) eval(float64) float64 { return n.value }

type varNode struct{}

func (n *varNode) eval(x float64) float64 { return x }

type unaryNode struct {
	operand node
}

func (n *unaryNode) eval(x float64) float64 { return -n.operand.eval(x) }

type binaryNode struct {
	op          byte // '+' '-' '*' '/' '%' '^'
	left, right node
}

func (n *binaryNode) eval(x float64) float64 {
	l := n.left.eval(x)
	r := n.right.eval(x)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		return l / r
	case '%':
		return math.Mod(l, r)
	case '^':
		return math.Pow(l, r)
	}
	return math.NaN()
}

type callNode struct {
	fn   func(args []float64) float64
	name string
	args []node
}

func (n *callNode) eval(x float64) float64 {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(x)
	}
	return n.fn(args)
}

// function 白名单数学函数
type function struct {
	arity int
	fn    func(args []float64) float64
}

// 白名单：全部为纯数学函数，求值总是终止
var functions = map[string]function{
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"ln":    {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"log10": {1, func(a []float64) float64 { return math.Log10(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
}

// Eval 求表达式在 x 处的值
// 求值时间与节点数线性有界（解析时已限制节点预算）；
// 结果非有限（NaN/Inf）时返回错误而不是异常值
func (e *Expr) Eval(x float64) (float64, error) {
	result := e.root.eval(x)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula yields non-finite result at x=%v", x)
	}
	return result, nil
}
