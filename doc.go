/*
Command mylo compiles and runs programs written in mylo, a small
dynamically-typed scripting language with structs, enums, namespaces,
arrays/maps/byte-buffers, and f-string interpolation.

Compilation is single-pass: the recursive-descent parser emits bytecode
directly into a flat Image as it recognizes each construct, backpatching
forward jumps (if/else, loops, ternary, forward function calls) once their
targets are known rather than building an intermediate AST.

The VM is a straightforward fetch-decode-dispatch loop over a tagged-value
operand stack, a flat bump-allocated heap for arrays/maps/byte-buffers/
structs, and call frames threaded through the operand stack itself (no
separate return-address stack).
*/
package main
