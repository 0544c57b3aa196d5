// Command tcphotos downloads a child's photos from Transparent Classroom.
package main

func main() {
	Execute()
}
