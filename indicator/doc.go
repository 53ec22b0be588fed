// Package indicator shows bridge activity on an LED.
package indicator
