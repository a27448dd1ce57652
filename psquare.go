package aokernel

// quantile estimates one quantile of a stream in O(1) space and time per
// observation, using the P² algorithm (Jain and Chlamtac, 1985): five
// markers track the minimum, the maximum, the target quantile and the
// midpoints between, and are nudged towards their ideal positions with a
// piecewise-parabolic fit.
//
// Not safe for concurrent use.
type quantile struct {
	heights [5]float64
	pos     [5]int
	want    [5]float64
	step    [5]float64
	p       float64
	n       int
}

func newQuantile(p float64) *quantile {
	p = min(max(p, 0), 1)
	return &quantile{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (q *quantile) observe(x float64) {
	if q.n < 5 {
		// insertion sort of the first five observations
		i := q.n
		for i > 0 && q.heights[i-1] > x {
			q.heights[i] = q.heights[i-1]
			i--
		}
		q.heights[i] = x
		q.n++
		if q.n == 5 {
			for i := range q.pos {
				q.pos[i] = i
			}
			q.want = [5]float64{0, 2 * q.p, 4 * q.p, 2 + 2*q.p, 4}
		}
		return
	}
	q.n++

	var cell int
	switch {
	case x < q.heights[0]:
		q.heights[0] = x
	case x >= q.heights[4]:
		q.heights[4] = x
		cell = 3
	default:
		for cell = 0; cell < 3 && x >= q.heights[cell+1]; cell++ {
		}
	}
	for i := cell + 1; i < 5; i++ {
		q.pos[i]++
	}
	for i := range q.want {
		q.want[i] += q.step[i]
	}

	for i := 1; i < 4; i++ {
		d := q.want[i] - float64(q.pos[i])
		if !(d >= 1 && q.pos[i+1]-q.pos[i] > 1) && !(d <= -1 && q.pos[i-1]-q.pos[i] < -1) {
			continue
		}
		s := 1
		if d < 0 {
			s = -1
		}
		h := q.parabolic(i, s)
		if h <= q.heights[i-1] || h >= q.heights[i+1] {
			h = q.linear(i, s)
		}
		q.heights[i] = h
		q.pos[i] += s
	}
}

func (q *quantile) parabolic(i, s int) float64 {
	d := float64(s)
	n0, n1, n2 := float64(q.pos[i-1]), float64(q.pos[i]), float64(q.pos[i+1])
	h0, h1, h2 := q.heights[i-1], q.heights[i], q.heights[i+1]
	return h1 + d/(n2-n0)*((n1-n0+d)*(h2-h1)/(n2-n1)+(n2-n1-d)*(h1-h0)/(n1-n0))
}

func (q *quantile) linear(i, s int) float64 {
	j := i + s
	return q.heights[i] + float64(s)*(q.heights[j]-q.heights[i])/float64(q.pos[j]-q.pos[i])
}

// value returns the current estimate, or 0 without observations.
func (q *quantile) value() float64 {
	switch {
	case q.n == 0:
		return 0
	case q.n < 5:
		// heights holds the sorted observations so far
		return q.heights[int(float64(q.n-1)*q.p)]
	default:
		return q.heights[2]
	}
}
