// Package dynamo provides the dynamics primitives consumed by the solver.
//
// The package defines the fundamental interfaces and types for discrete-time
// trajectory optimization:
//
//   - [State], [Control]: vector types for system state and input
//   - [System]: interface for continuous ODE systems (dX/dt = f(X, u, t))
//   - [Model]: discrete dynamics oracle x' = F(x, u, dt) with Jacobians
//   - [Discretize]: wraps a System into a Model (euler, midpoint, rk4)
//
// # Example
//
//	sys := physics.NewCartPole()
//	model, _ := dynamo.Discretize(sys, "rk4")
//	x1 := model.Step(x0, u0, 0.05)
//
// # Thread Safety
//
// Model instances reuse internal scratch buffers and are NOT thread-safe.
// Create one Model per goroutine.
package dynamo
