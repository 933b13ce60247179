// Package physics provides dynamical system models for trajectory
// optimization.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the system's evolution:
//
//   - [DoubleIntegrator]: linear point mass (forward-Euler discrete form
//     available as [DiscreteDoubleIntegrator])
//   - [Pendulum]: torque-actuated pendulum
//   - [CartPole]: cart with an unactuated pole
//
// Models with analytic linearizations also implement [dynamo.Linearizable],
// which [dynamo.Discretize] uses for exact Jacobians of the euler step; every
// other model and method relies on finite-difference Jacobians of the
// discretized step.
package physics
