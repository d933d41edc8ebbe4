package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"text/tabwriter"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
)

// Network is a convolutional trunk shared by a gender head and an age head.
//
// The gender head emits a logit; the age head emits years. A Network is not
// safe for concurrent use: pooling layers cache their index mappers and
// dropout state is shared.
type Network struct {
	Topology Topology

	Trunk  anynet.Net
	Gender anynet.Net
	Age    anynet.Net

	creator  anyvec.Creator
	dropouts []*anynet.Dropout
}

// Build constructs a freshly initialised network. Weights are drawn from a
// generator seeded with seed, so equal seeds build equal networks.
func Build(top Topology, seed int64) (*Network, error) {
	if err := top.Validate(); err != nil {
		return nil, essentials.AddCtx("build network", err)
	}
	top.ConvFilters = append([]int(nil), top.ConvFilters...)

	rng := rand.New(rand.NewSource(seed))
	c := anyvec32.CurrentCreator()
	n := &Network{Topology: top, creator: c}

	side, depth := top.InputSize, top.InputDepth
	for _, filters := range top.ConvFilters {
		conv := &anyconv.Conv{
			FilterCount:  filters,
			FilterWidth:  top.KernelSize,
			FilterHeight: top.KernelSize,
			StrideX:      1,
			StrideY:      1,
			InputWidth:   side,
			InputHeight:  side,
			InputDepth:   depth,
		}
		conv.InitZero(c)
		heInit(c, conv.Filters.Vector, top.KernelSize*top.KernelSize*depth, rng)

		pool := &anyconv.MaxPool{
			SpanX:       top.PoolSize,
			SpanY:       top.PoolSize,
			StrideX:     top.PoolSize,
			StrideY:     top.PoolSize,
			InputWidth:  conv.OutputWidth(),
			InputHeight: conv.OutputHeight(),
			InputDepth:  conv.OutputDepth(),
		}
		n.Trunk = append(n.Trunk, conv, anynet.ReLU, pool)
		side, depth = pool.OutputWidth(), pool.OutputDepth()
	}

	flat := side * side * depth
	if flat != top.FlatSize() {
		return nil, fmt.Errorf("build network: trunk output %d does not match topology %d", flat, top.FlatSize())
	}
	n.Gender = n.head(flat, rng)
	n.Age = n.head(flat, rng)
	n.SetTraining(false)
	return n, nil
}

// head builds FC -> ReLU -> Dropout -> FC(1).
func (n *Network) head(flat int, rng *rand.Rand) anynet.Net {
	c := n.creator
	hidden := anynet.NewFCZero(c, flat, n.Topology.DenseUnits)
	heInit(c, hidden.Weights.Vector, flat, rng)
	out := anynet.NewFCZero(c, n.Topology.DenseUnits, 1)
	heInit(c, out.Weights.Vector, n.Topology.DenseUnits, rng)
	drop := &anynet.Dropout{KeepProb: 1 - n.Topology.DropoutRate}
	n.dropouts = append(n.dropouts, drop)
	return anynet.Net{hidden, anynet.ReLU, drop, out}
}

func heInit(c anyvec.Creator, v anyvec.Vector, fanIn int, rng *rand.Rand) {
	anyvec.Rand(v, anyvec.Normal, rng)
	v.Scale(c.MakeNumeric(math.Sqrt(2 / float64(fanIn))))
}

// OutputNames lists the heads in the order Apply interleaves them.
func (n *Network) OutputNames() []string {
	return []string{GenderOutput, AgeOutput}
}

// Inputs is the number of input tensors the network consumes.
func (n *Network) Inputs() int { return 1 }

// Creator returns the vector creator the weights live in.
func (n *Network) Creator() anyvec.Creator { return n.creator }

// SetTraining enables or disables dropout in both heads.
func (n *Network) SetTraining(training bool) {
	for _, d := range n.dropouts {
		d.Enabled = training
	}
}

// Parameters returns the trunk parameters followed by both heads.
func (n *Network) Parameters() []*anydiff.Var {
	res := n.Trunk.Parameters()
	res = append(res, n.Gender.Parameters()...)
	return append(res, n.Age.Parameters()...)
}

// Apply runs the network on a batch and returns, for every sample, the pair
// [gender logit, age].
func (n *Network) Apply(in anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(n.Trunk.Apply(in, batch), func(shared anydiff.Res) anydiff.Res {
		return anynet.ConcatMixer{}.Mix(n.Gender.Apply(shared, batch), n.Age.Apply(shared, batch), batch)
	})
}

// Predict runs a forward pass with dropout disabled. x holds batch rows of
// Topology.RowSize() values.
func (n *Network) Predict(x []float32, batch int) ([]Prediction, error) {
	if batch <= 0 || len(x) != batch*n.Topology.RowSize() {
		return nil, fmt.Errorf("predict: %d values do not form %d rows of %d", len(x), batch, n.Topology.RowSize())
	}
	n.SetTraining(false)
	out := vectorFloats(n.Apply(anydiff.NewConst(anyvec32.MakeVectorData(x)), batch).Output())
	preds := make([]Prediction, batch)
	for i := range preds {
		preds[i] = Prediction{GenderProb: sigmoid(out[2*i]), Age: out[2*i+1]}
	}
	return preds, nil
}

// Gradient runs a training-mode forward pass and backpropagates the
// batch-averaged loss. The returned gradient covers Parameters().
func (n *Network) Gradient(b Batch) (anydiff.Grad, Step, error) {
	n.SetTraining(true)
	defer n.SetTraining(false)

	cost, step, err := n.forward(b)
	if err != nil {
		return nil, Step{}, essentials.AddCtx("gradient", err)
	}
	grad := anydiff.NewGrad(n.Parameters()...)
	upstream := n.creator.MakeVectorData(n.creator.MakeNumericList([]float64{1}))
	cost.Propagate(upstream, grad)
	return grad, step, nil
}

// Evaluate computes the loss and predictions with dropout disabled.
func (n *Network) Evaluate(b Batch) (Step, error) {
	n.SetTraining(false)
	_, step, err := n.forward(b)
	if err != nil {
		return Step{}, essentials.AddCtx("evaluate", err)
	}
	return step, nil
}

func (n *Network) forward(b Batch) (anydiff.Res, Step, error) {
	if err := b.validate(n.Topology.RowSize()); err != nil {
		return nil, Step{}, err
	}
	c := n.creator
	in := anydiff.NewConst(anyvec32.MakeVectorData(b.Inputs))
	genderTarget := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(intsToFloats(b.Gender))))
	ageTarget := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(intsToFloats(b.Age))))

	var logits, ages, genderCost, ageCost anyvec.Vector
	total := anydiff.Pool(n.Trunk.Apply(in, b.N), func(shared anydiff.Res) anydiff.Res {
		g := n.Gender.Apply(shared, b.N)
		a := n.Age.Apply(shared, b.N)
		gc := genderLoss(genderTarget, g, b.N)
		ac := ageLoss(ageTarget, a)
		logits, ages = g.Output(), a.Output()
		genderCost, ageCost = gc.Output(), ac.Output()
		return anydiff.Add(gc, ac)
	})
	mean := anydiff.Scale(anydiff.Sum(total), c.MakeNumeric(1/float64(b.N)))

	step := Step{
		GenderLoss:  mean64(vectorFloats(genderCost)),
		AgeLoss:     mean64(vectorFloats(ageCost)),
		Predictions: make([]Prediction, b.N),
	}
	step.Loss = step.GenderLoss + step.AgeLoss
	lv, av := vectorFloats(logits), vectorFloats(ages)
	for i := range step.Predictions {
		step.Predictions[i] = Prediction{GenderProb: sigmoid(lv[i]), Age: av[i]}
	}
	return mean, step, nil
}

// Summary renders one row per layer with its output shape and parameter
// count.
func (n *Network) Summary() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "layer\toutput\tparams")
	total := 0
	row := func(name, shape string, params []*anydiff.Var) {
		count := 0
		for _, p := range params {
			count += p.Vector.Len()
		}
		total += count
		fmt.Fprintf(tw, "%s\t%s\t%d\n", name, shape, count)
	}
	row("input", fmt.Sprintf("(%d, %d, %d)", n.Topology.InputSize, n.Topology.InputSize, n.Topology.InputDepth), nil)
	for _, layer := range n.Trunk {
		switch l := layer.(type) {
		case *anyconv.Conv:
			row("conv2d", fmt.Sprintf("(%d, %d, %d)", l.OutputHeight(), l.OutputWidth(), l.OutputDepth()), l.Parameters())
		case *anyconv.MaxPool:
			row("max_pool", fmt.Sprintf("(%d, %d, %d)", l.OutputHeight(), l.OutputWidth(), l.OutputDepth()), nil)
		}
	}
	row("flatten", fmt.Sprintf("(%d)", n.Topology.FlatSize()), nil)
	for i, head := range []anynet.Net{n.Gender, n.Age} {
		name := n.OutputNames()[i]
		for j, layer := range head {
			switch l := layer.(type) {
			case *anynet.FC:
				label := name + "/dense"
				if j == len(head)-1 {
					label = name
				}
				row(label, fmt.Sprintf("(%d)", l.OutCount), l.Parameters())
			case *anynet.Dropout:
				row(name+"/dropout", fmt.Sprintf("(%d)", n.Topology.DenseUnits), nil)
			}
		}
	}
	tw.Flush()
	fmt.Fprintf(&sb, "total params: %d\n", total)
	return sb.String()
}

// vectorFloats copies a float32 or float64 vector into a []float64.
func vectorFloats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic(errors.New("unsupported numeric type"))
	}
}

func intsToFloats(v []int) []float64 {
	res := make([]float64, len(v))
	for i, x := range v {
		res[i] = float64(x)
	}
	return res
}

func mean64(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
