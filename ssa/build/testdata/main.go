package main

func main() {
	a := make([]int, 8)
	fill(a, 8)
	println(sum(a, 8))
}
