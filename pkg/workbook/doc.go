// Package workbook builds engine workbooks from YAML documents.
package workbook
