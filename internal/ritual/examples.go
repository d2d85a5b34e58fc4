package ritual

// Example is a ready-made corpse to practise on.
type Example struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Code       string `json:"code"`
}

// SourceLanguages are the languages offered for input.
var SourceLanguages = []string{"Auto-detect", "COBOL", "Fortran", "Assembly", "BASIC"}

// TargetLanguages are the languages offered for output.
var TargetLanguages = []string{"TypeScript", "Rust", "Go", "Python"}

// Examples are the bundled sample programs.
var Examples = []Example{
	{
		ID:         "cobol_finance",
		Name:       "Financial Ruin (COBOL)",
		SourceLang: "COBOL",
		TargetLang: "TypeScript",
		Code: `       IDENTIFICATION DIVISION.
       PROGRAM-ID. MORTGAGE-CALC.
       DATA DIVISION.
       WORKING-STORAGE SECTION.
       01  LOAN-AMOUNT        PIC 9(9)V99 VALUE 500000.00.
       01  INTEREST-RATE      PIC 9(3)V99 VALUE 0.05.
       01  TERM-YEARS         PIC 9(3) VALUE 30.
       01  MONTHLY-PAYMENT    PIC 9(7)V99.
       PROCEDURE DIVISION.
           COMPUTE MONTHLY-PAYMENT = (LOAN-AMOUNT * INTEREST-RATE / 12) /
           (1 - (1 + INTEREST-RATE / 12) ** -(TERM-YEARS * 12)).
           DISPLAY "MONTHLY SUFFERING: " MONTHLY-PAYMENT.
           STOP RUN.`,
	},
	{
		ID:         "fortran_physics",
		Name:       "Atomic Decay (Fortran)",
		SourceLang: "Fortran",
		TargetLang: "Rust",
		Code: `      PROGRAM HALF_LIFE
      IMPLICIT NONE
      REAL :: MASS, DECAY_CONST, TIME, REMAINING
      MASS = 100.0
      DECAY_CONST = 0.693 / 5730.0
      TIME = 10000.0
      REMAINING = MASS * EXP(-DECAY_CONST * TIME)
      PRINT *, 'REMAINING SOUL FRAGMENTS: ', REMAINING
      END PROGRAM HALF_LIFE`,
	},
	{
		ID:         "basic_loop",
		Name:       "Eternal Loop (BASIC)",
		SourceLang: "BASIC",
		TargetLang: "Python",
		Code: `10 PRINT "YOU CANNOT ESCAPE"
20 GOTO 10`,
	},
	{
		ID:         "asm_hello",
		Name:       "Raw Thought (Assembly)",
		SourceLang: "Assembly",
		TargetLang: "C",
		Code: `section .data
    msg db 'Hello from the grave', 0xa
    len equ $ - msg

section .text
    global _start

_start:
    mov edx, len
    mov ecx, msg
    mov ebx, 1
    mov eax, 4
    int 0x80

    mov eax, 1
    int 0x80`,
	},
}

// FindExample returns the example with the given ID.
func FindExample(id string) (Example, bool) {
	for _, e := range Examples {
		if e.ID == id {
			return e, true
		}
	}
	return Example{}, false
}
