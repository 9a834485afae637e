// Package stream defines the stream model shared by the relay and the
// companion tools: descriptors, samples, outlets, inlets and resolvers.
//
// Transports live under pkg/adapters/transport and implement the Outlet,
// Inlet and Resolver interfaces declared here.
package stream
