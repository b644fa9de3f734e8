// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance (default)
//   - MetricCosine: 1 - cosine similarity; zero vectors are at distance 1
//   - MetricDot: Negative dot product, so smaller is closer
//
// Every metric returns a distance where smaller means closer, which lets the
// query engine rank all metrics the same way.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	fn := distance.MetricCosine.Func()
//	d := fn(query, row)
package distance
