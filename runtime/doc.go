// Package runtime implements the Quill runtime core.
//
// This package contains:
//   - Fixed-size tagged value cells with arbitrary-depth quoting
//   - Series nodes and the managed pool allocator
//   - Interned symbols
//   - Contexts (objects, modules, frames) with copy-on-write keylists
//   - Specific/relative binding resolution with derived-context override
//   - The transient symbol binder used during collection and binding
//   - The tracing collector's per-kind mark contract and sweep
//
// The bytecode evaluator, datatype operations and ports live in other
// packages; they consume this one through specifiers, Resolve and the
// collector driver.
package runtime
