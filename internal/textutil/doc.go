// Package textutil provides slug generation, filename sanitization, and word
// counting shared by the output assembler and metadata record.
package textutil
