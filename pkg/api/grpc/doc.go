// Package grpc exposes the grpc.health.v1 service for the relay streams.
package grpc
