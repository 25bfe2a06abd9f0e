// Package vms contiene la lógica pura de construcción del payload fiscal VMS:
// cadenas de anticipos, referencias a envíos previos, pagos y control de pago total.
// No realiza I/O; el mismo input produce siempre el mismo payload.
package vms

import "strconv"

// Ordinal formatea n con sufijo ordinal en inglés: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	if mod100 := n % 100; mod100 < 11 || mod100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// InstallmentLabel nombre del ítem sintético de una cuota: "2nd Installment".
func InstallmentLabel(n int) string {
	return Ordinal(n) + " Installment"
}
