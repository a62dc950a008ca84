/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	front ->
Intermediate Representation (ir) ->
	back ->
MARS Assembly Text

Intermediate Representation (ir) ->
	llvm ->
LLVM Assembly Text

MARS Assembly Text ->
	asm/mips ->
Program Output

*/
package compiler
