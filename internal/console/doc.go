// Package console owns one instance of every sensor console component and
// exposes the operator operations over them.
package console
